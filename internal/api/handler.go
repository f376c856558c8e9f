package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/incident"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/monitor"
	"helmetguard-client/internal/profile"
	"helmetguard-client/internal/status"
	"helmetguard-client/internal/store"
)

// Monitor is the controller as seen by the API.
type Monitor interface {
	Overview() monitor.Overview
	Submit(ctx context.Context, snap status.Snapshot) error
	StopRecording(ctx context.Context) (bool, error)
}

// Gallery lists and serves sealed clips.
type Gallery interface {
	List() []incident.Item
	Get(id string) (incident.Item, error)
	Delete(id string) error
}

// Locations receives position updates from the rider's device.
type Locations interface {
	Update(f location.Fix)
}

// Sharer sends the rider's position to their contacts on demand.
type Sharer interface {
	ShareLocation(ctx context.Context) (*alert.ShareResult, error)
}

// Outbox lists locally composed fallback messages.
type Outbox interface {
	List() []alert.OutboxMessage
}

// Prober checks the SMS backend.
type Prober interface {
	BaseURL() string
	Health(ctx context.Context) (*backend.Health, error)
}

// Profiles serves the rider profile.
type Profiles interface {
	Current() profile.Profile
}

// Deps are the collaborators the API is built from. Store and Monitor are
// required; the rest may be nil, in which case their routes answer 503.
type Deps struct {
	Store     store.Store
	WebPush   *webpush.Options
	Monitor   Monitor
	Gallery   Gallery
	Locations Locations
	Sharer    Sharer
	Outbox    Outbox
	Backend   Prober
	Profiles  Profiles
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	now func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d, now: time.Now}
}
