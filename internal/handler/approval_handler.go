package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vms-api/internal/middleware"
	"github.com/noah-isme/vms-api/internal/service"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/response"
)

// ApprovalHandler exposes token-based approval endpoints. The decision links
// are opened from email, so both GET and POST are routed here.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler constructs ApprovalHandler.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type approveRequest struct {
	Remarks string `json:"remarks"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Approve godoc
// @Summary Approve a visit request by token
// @Tags Approvals
// @Accept json
// @Produce json
// @Param token path string true "Approval token"
// @Param payload body approveRequest false "Optional remarks"
// @Success 200 {object} response.Envelope
// @Router /approvals/approve/{token} [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req approveRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.approvals.Approve(c.Request.Context(), c.Param("token"), req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a visit request by token
// @Tags Approvals
// @Accept json
// @Produce json
// @Param token path string true "Approval token"
// @Param payload body rejectRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /approvals/reject/{token} [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.approvals.Reject(c.Request.Context(), c.Param("token"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Pending godoc
// @Summary List pending visit requests
// @Tags Approvals
// @Produce json
// @Security BearerAuth
// @Param hostEmployeeId query int false "Filter by host employee; defaults to the caller"
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	var hostEmployeeID int64
	if host, err := strconv.ParseInt(c.Query("hostEmployeeId"), 10, 64); err == nil {
		hostEmployeeID = host
	} else if claims, ok := middleware.CurrentEmployee(c); ok {
		hostEmployeeID = claims.EmployeeID
	}
	pending, err := h.approvals.PendingApprovals(c.Request.Context(), hostEmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Sweep godoc
// @Summary Expire lapsed pending requests
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /approvals/sweep [post]
func (h *ApprovalHandler) Sweep(c *gin.Context) {
	result, err := h.approvals.SweepExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
