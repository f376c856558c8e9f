package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helmetguard-client/internal/store"
)

const maxAlertLimit = 200

// ListAlerts handles GET /api/alerts?limit=N, newest first.
func (h *Handler) ListAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAlertLimit)
	}

	alerts, err := h.Store.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlert handles GET /api/alerts/:id.
func (h *Handler) GetAlert(c *gin.Context) {
	rec, err := h.Store.GetAlert(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve alert"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListOutbox handles GET /api/outbox.
func (h *Handler) ListOutbox(c *gin.Context) {
	if h.Outbox == nil {
		unavailable(c, "outbox")
		return
	}
	c.JSON(http.StatusOK, h.Outbox.List())
}

// GetProfile handles GET /api/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	if h.Profiles == nil {
		unavailable(c, "profile")
		return
	}
	c.JSON(http.StatusOK, h.Profiles.Current())
}

type backendStatus struct {
	URL          string `json:"url"`
	Reachable    bool   `json:"reachable"`
	Running      bool   `json:"running"`
	SMSConnected bool   `json:"smsConnected"`
	Version      string `json:"version,omitempty"`
	Error        string `json:"error,omitempty"`
}

// GetBackend handles GET /api/backend. The router caches successful probes.
func (h *Handler) GetBackend(c *gin.Context) {
	if h.Backend == nil {
		unavailable(c, "backend")
		return
	}
	out := backendStatus{URL: h.Backend.BaseURL()}

	health, err := h.Backend.Health(c.Request.Context())
	if err != nil {
		out.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, out)
		return
	}
	out.Reachable = true
	out.Running = health.Running()
	out.SMSConnected = health.SMSConnected()
	out.Version = health.Version
	c.JSON(http.StatusOK, out)
}
