package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vms-api/internal/middleware"
	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/internal/service"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/response"
)

// PreApprovalHandler exposes employee-scheduled visit endpoints. All routes
// except quick check-in require an authenticated employee.
type PreApprovalHandler struct {
	preapprovals *service.PreApprovalService
}

// NewPreApprovalHandler constructs PreApprovalHandler.
func NewPreApprovalHandler(preapprovals *service.PreApprovalService) *PreApprovalHandler {
	return &PreApprovalHandler{preapprovals: preapprovals}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Create godoc
// @Summary Schedule a pre-approved visit
// @Tags PreApprovals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.PreApprovalInput true "Visit payload"
// @Success 201 {object} response.Envelope
// @Router /preapprovals [post]
func (h *PreApprovalHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PreApprovalInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.preapprovals.Create(c.Request.Context(), claims.EmployeeID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List the employee's scheduled visits
// @Tags PreApprovals
// @Produce json
// @Security BearerAuth
// @Param date query string false "Visit date (YYYY-MM-DD)"
// @Param status query string false "Filter by lifecycle status"
// @Success 200 {object} response.Envelope
// @Router /preapprovals [get]
func (h *PreApprovalHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.PreApprovalFilter{
		EmployeeID: claims.EmployeeID,
		Status:     models.VisitorStatus(c.Query("status")),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}
	categorized, err := h.preapprovals.ListForEmployee(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categorized, nil)
}

// Get godoc
// @Summary Get one scheduled visit
// @Tags PreApprovals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Visit ID"
// @Success 200 {object} response.Envelope
// @Router /preapprovals/{id} [get]
func (h *PreApprovalHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	visitor, err := h.preapprovals.Get(c.Request.Context(), claims.EmployeeID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Limits godoc
// @Summary Check the daily pre-approval quota
// @Tags PreApprovals
// @Produce json
// @Security BearerAuth
// @Param date query string true "Visit date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /preapprovals/limits [get]
func (h *PreApprovalHandler) Limits(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD"))
		return
	}
	limits, err := h.preapprovals.CheckLimits(c.Request.Context(), claims.EmployeeID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, limits, nil)
}

// Update godoc
// @Summary Edit or reschedule a visit
// @Tags PreApprovals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Visit ID"
// @Param payload body service.PreApprovalUpdateInput true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /preapprovals/{id} [put]
func (h *PreApprovalHandler) Update(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.PreApprovalUpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.preapprovals.Update(c.Request.Context(), claims.EmployeeID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a scheduled visit
// @Tags PreApprovals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Visit ID"
// @Param payload body cancelRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /preapprovals/{id}/cancel [post]
func (h *PreApprovalHandler) Cancel(c *gin.Context) {
	claims, ok := middleware.CurrentEmployee(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req cancelRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.preapprovals.Cancel(c.Request.Context(), claims.EmployeeID, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// QuickCheckIn godoc
// @Summary Check in a pre-approved visitor by pass token
// @Tags PreApprovals
// @Produce json
// @Param token path string true "Pre-approval token"
// @Success 200 {object} response.Envelope
// @Router /preapprovals/checkin/{token} [post]
func (h *PreApprovalHandler) QuickCheckIn(c *gin.Context) {
	visitor, err := h.preapprovals.QuickCheckIn(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}
