package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"helmetguard-client/internal/monitor"
	"helmetguard-client/internal/status"
)

const maxTelemetryBody = 64 << 10

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Monitor.Overview())
}

// PostTelemetry handles POST /api/telemetry. It accepts the same JSON the
// helmet publishes over MQTT.
func (h *Handler) PostTelemetry(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTelemetryBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	snap, err := status.Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Monitor.Submit(c.Request.Context(), snap); err != nil {
		abortMonitor(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// StopRecording handles POST /api/recording/stop.
func (h *Handler) StopRecording(c *gin.Context) {
	stopped, err := h.Monitor.StopRecording(c.Request.Context())
	if err != nil {
		abortMonitor(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func abortMonitor(c *gin.Context, err error) {
	if errors.Is(err, monitor.ErrStopped) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	log.Printf("Monitor request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "monitor unavailable"})
}
