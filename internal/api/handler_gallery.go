package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"helmetguard-client/internal/incident"
)

// ListGallery handles GET /api/gallery. Artifacts are not included.
func (h *Handler) ListGallery(c *gin.Context) {
	if h.Gallery == nil {
		unavailable(c, "gallery")
		return
	}
	c.JSON(http.StatusOK, h.Gallery.List())
}

// DownloadClip handles GET /api/gallery/:id.
func (h *Handler) DownloadClip(c *gin.Context) {
	if h.Gallery == nil {
		unavailable(c, "gallery")
		return
	}
	it, err := h.Gallery.Get(c.Param("id"))
	if err != nil {
		galleryError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, it.Filename))
	c.Data(http.StatusOK, it.MimeType, it.Artifact)
}

// DeleteClip handles DELETE /api/gallery/:id.
func (h *Handler) DeleteClip(c *gin.Context) {
	if h.Gallery == nil {
		unavailable(c, "gallery")
		return
	}
	if err := h.Gallery.Delete(c.Param("id")); err != nil {
		galleryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func galleryError(c *gin.Context, err error) {
	if errors.Is(err, incident.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "clip not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}
