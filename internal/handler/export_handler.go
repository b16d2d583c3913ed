package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/internal/service"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/response"
)

// ExportHandler serves visitor log downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// VisitorLog godoc
// @Summary Download the visitor log
// @Tags Exports
// @Produce octet-stream
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Security BearerAuth
// @Router /exports/visitors [get]
func (h *ExportHandler) VisitorLog(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be formatted YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be formatted YYYY-MM-DD"))
		return
	}
	_, toEnd := models.DaySpan(to)

	filename := fmt.Sprintf("visitor-log-%s-%s", from.Format("20060102"), to.Format("20060102"))
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		out, err := h.exports.VisitorLogCSV(c.Request.Context(), from, toEnd)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", out)
	case "pdf":
		out, err := h.exports.VisitorLogPDF(c.Request.Context(), from, toEnd)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", out)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
