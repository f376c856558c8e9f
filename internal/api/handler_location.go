package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"helmetguard-client/internal/location"
	"helmetguard-client/internal/profile"
)

type postLocationRequest struct {
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Accuracy float64  `json:"accuracy"`
}

// PostLocation handles POST /api/location, the device's position watch.
func (h *Handler) PostLocation(c *gin.Context) {
	if h.Locations == nil {
		unavailable(c, "location")
		return
	}
	var req postLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	fix := location.Fix{Lat: *req.Lat, Lng: *req.Lng, Accuracy: req.Accuracy, Timestamp: h.now()}
	if err := fix.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Locations.Update(fix)
	c.Status(http.StatusNoContent)
}

// ShareLocation handles POST /api/share-location.
func (h *Handler) ShareLocation(c *gin.Context) {
	if h.Sharer == nil {
		unavailable(c, "sharing")
		return
	}
	res, err := h.Sharer.ShareLocation(c.Request.Context())
	switch {
	case errors.Is(err, location.ErrNoFix):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, profile.ErrNoContacts):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case err != nil:
		log.Printf("Share location failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to share location"})
	default:
		c.JSON(http.StatusOK, res)
	}
}
