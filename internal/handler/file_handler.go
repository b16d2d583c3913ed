package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vms-api/internal/service"
	appErrors "github.com/noah-isme/vms-api/pkg/errors"
	"github.com/noah-isme/vms-api/pkg/response"
	"github.com/noah-isme/vms-api/pkg/storage"
)

// FileHandler serves stored files referenced by signed download tokens, so
// photo links can be shared without exposing filesystem paths or requiring
// authentication.
type FileHandler struct {
	signer *storage.SignedURLSigner
	store  service.PhotoStore
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(signer *storage.SignedURLSigner, store service.PhotoStore) *FileHandler {
	return &FileHandler{signer: signer, store: store}
}

// Download godoc
// @Summary Download a file by signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link"))
		return
	}
	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
