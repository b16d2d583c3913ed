package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vms-api/internal/models"
	"github.com/noah-isme/vms-api/internal/service"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/response"
	"github.com/noah-isme/vms-api/pkg/storage"
)

// VisitorHandler exposes walk-in visitor endpoints.
type VisitorHandler struct {
	visitors    *service.VisitorService
	signer      *storage.SignedURLSigner
	baseURL     string
	maxPhotoLen int64
}

// NewVisitorHandler constructs VisitorHandler.
func NewVisitorHandler(visitors *service.VisitorService, signer *storage.SignedURLSigner, baseURL string, maxPhotoLen int64) *VisitorHandler {
	if maxPhotoLen <= 0 {
		maxPhotoLen = 5 << 20
	}
	return &VisitorHandler{visitors: visitors, signer: signer, baseURL: baseURL, maxPhotoLen: maxPhotoLen}
}

// Register godoc
// @Summary Register a walk-in visitor
// @Tags Visitors
// @Accept json
// @Produce json
// @Param payload body service.RegisterInput true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /visitors [post]
func (h *VisitorHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.visitors.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List visitors
// @Tags Visitors
// @Produce json
// @Param search query string false "Search name, phone, email, company or host"
// @Param status query string false "Filter by lifecycle status"
// @Param hostEmployeeId query int false "Filter by host employee"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visitors [get]
func (h *VisitorHandler) List(c *gin.Context) {
	var filter models.VisitorFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.VisitorStatus(c.Query("status"))
	if host, err := strconv.ParseInt(c.Query("hostEmployeeId"), 10, 64); err == nil {
		filter.HostEmployeeID = host
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	visitors, pagination, err := h.visitors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, pagination)
}

// Search godoc
// @Summary Search visitors by name, phone, email, company or host
// @Tags Visitors
// @Produce json
// @Param query query string true "Search term"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visitors/search [get]
func (h *VisitorHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "query parameter is required"))
		return
	}
	filter := models.VisitorFilter{Search: query}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	visitors, pagination, err := h.visitors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, pagination)
}

// ByStatus godoc
// @Summary List visitors in one lifecycle status
// @Tags Visitors
// @Produce json
// @Param status path string true "Lifecycle status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visitors/status/{status} [get]
func (h *VisitorHandler) ByStatus(c *gin.Context) {
	filter := models.VisitorFilter{Status: models.VisitorStatus(c.Param("status"))}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	visitors, pagination, err := h.visitors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, pagination)
}

// Get godoc
// @Summary Get visitor detail
// @Tags Visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id} [get]
func (h *VisitorHandler) Get(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	visitor, err := h.visitors.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Update godoc
// @Summary Update visitor contact details
// @Tags Visitors
// @Accept json
// @Produce json
// @Param id path int true "Visitor ID"
// @Param payload body service.UpdateVisitorInput true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id} [put]
func (h *VisitorHandler) Update(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateVisitorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	visitor, err := h.visitors.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// UploadPhoto godoc
// @Summary Attach a photo to a visitor
// @Tags Visitors
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Visitor ID"
// @Param photo formData file true "Photo file"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id}/photo [post]
func (h *VisitorHandler) UploadPhoto(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := c.FormFile("photo")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "photo file is required"))
		return
	}
	if file.Size > h.maxPhotoLen {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "photo exceeds the maximum allowed size"))
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	visitor, err := h.visitors.AttachPhoto(c.Request.Context(), id, file.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if h.signer != nil && visitor.PhotoPath != nil {
		if token, expiresAt, err := h.signer.Generate(strconv.FormatInt(id, 10), *visitor.PhotoPath); err == nil {
			meta = map[string]interface{}{
				"photo_url":  fmt.Sprintf("%s/api/files/%s", h.baseURL, token),
				"expires_at": expiresAt,
			}
		}
	}
	response.JSON(c, http.StatusOK, visitor, nil, meta)
}

// Photo godoc
// @Summary Download a visitor photo
// @Tags Visitors
// @Produce octet-stream
// @Param id path int true "Visitor ID"
// @Success 200
// @Router /visitors/{id}/photo [get]
func (h *VisitorHandler) Photo(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.visitors.OpenPhoto(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

// CheckIn godoc
// @Summary Check in an approved visitor
// @Tags Visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id}/checkin [post]
func (h *VisitorHandler) CheckIn(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	visitor, err := h.visitors.CheckIn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// CheckOut godoc
// @Summary Check out a visitor
// @Tags Visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id}/checkout [post]
func (h *VisitorHandler) CheckOut(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	visitor, err := h.visitors.CheckOut(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Delete godoc
// @Summary Delete a visitor record
// @Tags Visitors
// @Produce json
// @Param id path int true "Visitor ID"
// @Success 204
// @Security BearerAuth
// @Router /visitors/{id} [delete]
func (h *VisitorHandler) Delete(c *gin.Context) {
	id, err := visitorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.visitors.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func visitorID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid visitor id")
	}
	return id, nil
}
