// Package location tracks the rider's last known position.
package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrTimeout is returned by Await when no fix arrives in time.
	ErrTimeout = errors.New("location fix timed out")
	// ErrNoFix is returned when an operation needs a fix and none is known.
	ErrNoFix = errors.New("location not available yet")
)

// Fix is one position report.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the coordinates are on the globe.
func (f Fix) Validate() error {
	if f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", f.Lat)
	}
	if f.Lng < -180 || f.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", f.Lng)
	}
	if f.Accuracy < 0 {
		return fmt.Errorf("accuracy %v is negative", f.Accuracy)
	}
	return nil
}

// MapLink returns a maps URL for the fix.
func (f Fix) MapLink() string {
	return fmt.Sprintf("https://maps.google.com/maps?q=%v,%v", f.Lat, f.Lng)
}

// Tracker holds the latest fix. Updates come from the continuous watch; Await
// serves one-shot refreshes.
type Tracker struct {
	clock clockwork.Clock

	mu      sync.Mutex
	latest  *Fix
	waiters []chan Fix
}

// NewTracker creates an empty tracker.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock}
}

// Update records a new fix and wakes pending waiters.
func (t *Tracker) Update(f Fix) {
	if f.Timestamp.IsZero() {
		f.Timestamp = t.clock.Now()
	}

	t.mu.Lock()
	t.latest = &f
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, w := range waiters {
		w <- f
	}
}

// Latest returns the last fix, if any.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Fix{}, false
	}
	return *t.latest, true
}

// Await waits for the next fix for at most timeout.
func (t *Tracker) Await(ctx context.Context, timeout time.Duration) (Fix, error) {
	ch := make(chan Fix, 1)
	t.mu.Lock()
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	timer := t.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-ch:
		return f, nil
	case <-timer.Chan():
		t.drop(ch)
		return Fix{}, ErrTimeout
	case <-ctx.Done():
		t.drop(ch)
		return Fix{}, ctx.Err()
	}
}

// Resolve returns the known fix, or waits up to timeout for one.
func (t *Tracker) Resolve(ctx context.Context, timeout time.Duration) (Fix, error) {
	if f, ok := t.Latest(); ok {
		return f, nil
	}
	return t.Await(ctx, timeout)
}

func (t *Tracker) drop(ch chan Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, w := range t.waiters {
		if w == ch {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}
