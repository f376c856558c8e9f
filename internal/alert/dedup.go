// Package alert delivers the emergency alert: it debounces repeated
// EMERGENCY transitions, waits briefly for a location fix, records the
// attempt, fans out to contacts through the backend and degrades to locally
// composed SMS links when the backend cannot be reached.
package alert

import "time"

// Dedup guards against repeated delivery. An alert is skipped while one has
// been sent and the cooldown since it has not yet elapsed. Returning to SAFE
// clears the sent flag but leaves the timestamp alone.
type Dedup struct {
	cooldown    time.Duration
	alertSent   bool
	lastAlertAt time.Time
}

// DedupState is a read-only view of the guard.
type DedupState struct {
	AlertSent   bool      `json:"alertSent"`
	LastAlertAt time.Time `json:"lastAlertAt"`
	CooldownMS  int64     `json:"cooldownMs"`
}

// NewDedup creates a guard with the given cooldown.
func NewDedup(cooldown time.Duration) *Dedup {
	return &Dedup{cooldown: cooldown}
}

// Allow reports whether an alert may fire at now.
func (d *Dedup) Allow(now time.Time) bool {
	return !d.alertSent || now.Sub(d.lastAlertAt) > d.cooldown
}

// Commit marks an alert as sent at now. It runs before any delivery work so
// rapid repeats are suppressed while the first attempt is in flight.
func (d *Dedup) Commit(now time.Time) {
	d.alertSent = true
	d.lastAlertAt = now
}

// Reset clears the sent flag.
func (d *Dedup) Reset() { d.alertSent = false }

// State returns the current guard state.
func (d *Dedup) State() DedupState {
	return DedupState{
		AlertSent:   d.alertSent,
		LastAlertAt: d.lastAlertAt,
		CooldownMS:  d.cooldown.Milliseconds(),
	}
}
