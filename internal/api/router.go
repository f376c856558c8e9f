package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"helmetguard-client/config"
	"helmetguard-client/internal/mw"
)

// NewRouter creates and configures a new Gin router. media, if non-nil,
// serves the chunk producer websocket. ctx bounds the limiter sweep.
func NewRouter(ctx context.Context, d Deps, cfg config.ServerConfig, media http.Handler) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(d)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute)
	rateLimiter := mw.LimitWith(limiter)

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	// Device ingress is never throttled: a dropped snapshot can be the only
	// EMERGENCY the helmet sends.
	device := r.Group("/api")
	{
		device.POST("/telemetry", handler.PostTelemetry)
		device.POST("/location", handler.PostLocation)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", handler.GetStatus)
		api.POST("/recording/stop", handler.StopRecording)

		api.GET("/gallery", handler.ListGallery)
		api.GET("/gallery/:id", handler.DownloadClip)
		api.DELETE("/gallery/:id", handler.DeleteClip)

		api.POST("/share-location", handler.ShareLocation)

		api.GET("/alerts", handler.ListAlerts)
		api.GET("/alerts/:id", handler.GetAlert)
		api.GET("/outbox", handler.ListOutbox)
		api.GET("/profile", handler.GetProfile)
		api.GET("/backend", caching, handler.GetBackend)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	if media != nil {
		r.GET("/ws/media", gin.WrapH(media))
	}

	return r
}
