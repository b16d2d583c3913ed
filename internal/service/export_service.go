package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/export"
)

type exportRepository interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Visitor, error)
}

// ExportService renders visitor logs as CSV or PDF downloads.
type ExportService struct {
	repo exportRepository
	csv  *export.CSVExporter
	pdf  *export.PDFExporter
}

// NewExportService constructs an ExportService.
func NewExportService(repo exportRepository) *ExportService {
	return &ExportService{
		repo: repo,
		csv:  export.NewCSVExporter(),
		pdf:  export.NewPDFExporter(),
	}
}

// VisitorLogCSV renders the visitor log for [from, to] as CSV bytes.
func (s *ExportService) VisitorLogCSV(ctx context.Context, from, to time.Time) ([]byte, error) {
	dataset, err := s.buildDataset(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render visitor log")
	}
	return out, nil
}

// VisitorLogPDF renders the visitor log for [from, to] as a PDF document.
func (s *ExportService) VisitorLogPDF(ctx context.Context, from, to time.Time) ([]byte, error) {
	dataset, err := s.buildDataset(ctx, from, to)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Visitor Log %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	out, err := s.pdf.Render(*dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render visitor log")
	}
	return out, nil
}

func (s *ExportService) buildDataset(ctx context.Context, from, to time.Time) (*export.Dataset, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must not precede its start")
	}
	visitors, err := s.repo.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor log")
	}

	dataset := &export.Dataset{
		Headers: []string{"Badge", "Name", "Company", "Purpose", "Host", "Status", "Check In", "Check Out", "Registered"},
		Rows:    make([]map[string]string, 0, len(visitors)),
	}
	for _, v := range visitors {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Badge":      v.BadgeID,
			"Name":       v.FullName,
			"Company":    v.CompanyName,
			"Purpose":    v.PurposeOfVisit,
			"Host":       v.HostEmployeeName,
			"Status":     string(v.Status),
			"Check In":   formatLogTime(v.CheckInTime),
			"Check Out":  formatLogTime(v.CheckOutTime),
			"Registered": v.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return dataset, nil
}

func formatLogTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
