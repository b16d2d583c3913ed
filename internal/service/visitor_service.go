package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vms-api/internal/models"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
)

type visitorRepository interface {
	Create(ctx context.Context, visitor *models.Visitor) error
	FindByID(ctx context.Context, id int64) (*models.Visitor, error)
	List(ctx context.Context, filter models.VisitorFilter) ([]models.Visitor, int, error)
	MarkCheckedIn(ctx context.Context, id int64, from models.VisitorStatus, now time.Time) (bool, error)
	MarkCheckedOut(ctx context.Context, id int64, now time.Time) (bool, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	SetPhotoPath(ctx context.Context, id int64, path string) error
	Delete(ctx context.Context, id int64) error
}

type visitorEmployeeReader interface {
	FindByID(ctx context.Context, id int64) (*models.Employee, error)
}

type hostAlerter interface {
	DispatchApprovalRequest(visitor *models.Visitor, hostEmail string) error
}

// PhotoStore abstracts the upload backend for visitor photos.
type PhotoStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// RegisterInput carries a walk-in registration request.
type RegisterInput struct {
	FullName       string `json:"full_name" binding:"required"`
	Phone          string `json:"phone"`
	Email          string `json:"email" binding:"omitempty,email"`
	PurposeOfVisit string `json:"purpose_of_visit" binding:"required"`
	CompanyName    string `json:"company_name"`
	HostEmployeeID int64  `json:"host_employee_id" binding:"required"`
}

// UpdateVisitorInput carries an administrative partial update. Nil fields are
// left untouched; lifecycle fields are never updatable through this path.
type UpdateVisitorInput struct {
	FullName       *string `json:"full_name"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email" binding:"omitempty,email"`
	PurposeOfVisit *string `json:"purpose_of_visit"`
	CompanyName    *string `json:"company_name"`
}

// RegistrationResult is the outcome of a walk-in registration.
type RegistrationResult struct {
	Visitor      *models.Visitor `json:"visitor"`
	AlertQueued  bool            `json:"alert_queued"`
	ApprovalURL  string          `json:"-"`
	RejectionURL string          `json:"-"`
}

// VisitorService owns walk-in registration and the gate operations shared by
// all visit kinds.
type VisitorService struct {
	repo        visitorRepository
	employees   visitorEmployeeReader
	alerts      hostAlerter
	photos      PhotoStore
	approvalTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewVisitorService constructs a VisitorService.
func NewVisitorService(repo visitorRepository, employees visitorEmployeeReader, alerts hostAlerter, photos PhotoStore, approvalTTL time.Duration, logger *zap.Logger) *VisitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if approvalTTL <= 0 {
		approvalTTL = 24 * time.Hour
	}
	return &VisitorService{
		repo:        repo,
		employees:   employees,
		alerts:      alerts,
		photos:      photos,
		approvalTTL: approvalTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a pending visit request against a host employee and queues
// the approval-request mail. The host's name and department are snapshotted
// onto the record.
func (s *VisitorService) Register(ctx context.Context, input RegisterInput) (*RegistrationResult, error) {
	host, err := s.employees.FindByID(ctx, input.HostEmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "host employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load host employee")
	}

	token, err := newApprovalToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate approval token")
	}

	now := s.now()
	expiry := now.Add(s.approvalTTL)
	visitor := &models.Visitor{
		BadgeID:          newBadgeID(now),
		FullName:         input.FullName,
		Phone:            input.Phone,
		Email:            input.Email,
		PurposeOfVisit:   input.PurposeOfVisit,
		CompanyName:      input.CompanyName,
		HostEmployeeID:   &host.ID,
		HostEmployeeName: host.Name,
		HostDepartment:   host.Department,
		Status:           models.StatusPending,
		ApprovalToken:    &token,
		ApprovalExpiry:   &expiry,
	}
	if err := s.repo.Create(ctx, visitor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register visitor")
	}

	result := &RegistrationResult{Visitor: visitor}
	if s.alerts != nil && host.Email != "" {
		if err := s.alerts.DispatchApprovalRequest(visitor, host.Email); err != nil {
			s.logger.Sugar().Warnw("host alert enqueue failed", "visitor_id", visitor.ID, "error", err)
		} else {
			result.AlertQueued = true
		}
	}
	return result, nil
}

// Get fetches a single visitor.
func (s *VisitorService) Get(ctx context.Context, id int64) (*models.Visitor, error) {
	return s.findVisitor(ctx, id)
}

// List returns visitors matching the filter together with pagination state.
func (s *VisitorService) List(ctx context.Context, filter models.VisitorFilter) ([]models.Visitor, *models.Pagination, error) {
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status))
	}
	visitors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visitors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return visitors, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update applies a partial update to a visitor's contact fields. Lifecycle
// state cannot be changed through this path.
func (s *VisitorService) Update(ctx context.Context, id int64, input UpdateVisitorInput) (*models.Visitor, error) {
	if _, err := s.findVisitor(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.FullName != nil {
		fields["full_name"] = *input.FullName
	}
	if input.Phone != nil {
		fields["mobile_number"] = *input.Phone
	}
	if input.Email != nil {
		fields["email"] = *input.Email
	}
	if input.PurposeOfVisit != nil {
		fields["purpose_of_visit"] = *input.PurposeOfVisit
	}
	if input.CompanyName != nil {
		fields["company_name"] = *input.CompanyName
	}
	if len(fields) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no updatable fields provided")
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visitor")
	}
	return s.findVisitor(ctx, id)
}

// AttachPhoto stores the uploaded photo and links it to the visitor. An
// earlier photo, if any, is removed after the new one is linked.
func (s *VisitorService) AttachPhoto(ctx context.Context, id int64, originalName string, r io.Reader) (*models.Visitor, error) {
	visitor, err := s.findVisitor(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.photos == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "photo storage is not configured")
	}

	ext := filepath.Ext(originalName)
	filename := fmt.Sprintf("visitors/%d/%s%s", id, uuid.NewString(), ext)
	stored, err := s.photos.SaveStream(filename, r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store visitor photo")
	}
	if err := s.repo.SetPhotoPath(ctx, id, stored); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link visitor photo")
	}

	if visitor.PhotoPath != nil && *visitor.PhotoPath != stored {
		if err := s.photos.Delete(*visitor.PhotoPath); err != nil {
			s.logger.Sugar().Warnw("stale photo cleanup failed", "visitor_id", id, "path", *visitor.PhotoPath, "error", err)
		}
	}
	visitor.PhotoPath = &stored
	return visitor, nil
}

// OpenPhoto returns a read handle for the visitor's stored photo.
func (s *VisitorService) OpenPhoto(ctx context.Context, id int64) (*os.File, error) {
	visitor, err := s.findVisitor(ctx, id)
	if err != nil {
		return nil, err
	}
	if visitor.PhotoPath == nil || s.photos == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor has no photo")
	}
	file, err := s.photos.Open(*visitor.PhotoPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "visitor photo unavailable")
	}
	return file, nil
}

// CheckIn admits an approved walk-in visitor. Pre-approved visits go through
// the quick check-in flow instead, which enforces the arrival window.
func (s *VisitorService) CheckIn(ctx context.Context, id int64) (*models.Visitor, error) {
	visitor, err := s.findVisitor(ctx, id)
	if err != nil {
		return nil, err
	}
	if visitor.Status != models.StatusApproved {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visitor is %s, only approved visitors can check in here", visitor.Status)),
			map[string]interface{}{"current_status": visitor.Status},
		)
	}

	now := s.now()
	ok, err := s.repo.MarkCheckedIn(ctx, id, models.StatusApproved, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check in visitor")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "visitor was already processed")
	}
	visitor.Status = models.StatusCheckedIn
	visitor.CheckInTime = &now
	visitor.ApprovalToken = nil
	visitor.UpdatedAt = now
	return visitor, nil
}

// CheckOut completes a checked-in visit.
func (s *VisitorService) CheckOut(ctx context.Context, id int64) (*models.Visitor, error) {
	visitor, err := s.findVisitor(ctx, id)
	if err != nil {
		return nil, err
	}
	if visitor.Status != models.StatusCheckedIn {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visitor is %s, only checked-in visitors can check out", visitor.Status)),
			map[string]interface{}{"current_status": visitor.Status},
		)
	}

	now := s.now()
	ok, err := s.repo.MarkCheckedOut(ctx, id, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out visitor")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "visitor was already checked out")
	}
	visitor.Status = models.StatusCheckedOut
	visitor.CheckOutTime = &now
	visitor.IsCheckedOut = true
	visitor.UpdatedAt = now
	return visitor, nil
}

// Delete removes a visitor record and its stored photo.
func (s *VisitorService) Delete(ctx context.Context, id int64) error {
	visitor, err := s.findVisitor(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete visitor")
	}
	if visitor.PhotoPath != nil && s.photos != nil {
		if err := s.photos.Delete(*visitor.PhotoPath); err != nil {
			s.logger.Sugar().Warnw("photo cleanup failed", "visitor_id", id, "error", err)
		}
	}
	return nil
}

func (s *VisitorService) findVisitor(ctx context.Context, id int64) (*models.Visitor, error) {
	visitor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visitor")
	}
	return visitor, nil
}
