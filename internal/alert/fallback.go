package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"helmetguard-client/internal/bounded"
	"helmetguard-client/internal/profile"
)

const outboxSize = 50

// OutboxMessage is one locally composed SMS awaiting the rider's device.
type OutboxMessage struct {
	AlertID   string    `json:"alertId,omitempty"`
	Contact   string    `json:"contact"`
	Phone     string    `json:"phone"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outbox holds recently composed fallback messages, newest first.
type Outbox struct {
	mu    sync.RWMutex
	items *bounded.List[OutboxMessage]
}

// NewOutbox creates an outbox holding the last capacity messages.
func NewOutbox(capacity int) *Outbox {
	return &Outbox{items: bounded.New[OutboxMessage](capacity, nil)}
}

// Put adds a message.
func (o *Outbox) Put(m OutboxMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items.PushFront(m)
}

// List returns the messages, newest first.
func (o *Outbox) List() []OutboxMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.items.Items()
}

// Fallback composes per-contact SMS links when the backend is unreachable.
// Contacts are spaced by the stagger interval so a single dispatch mechanism
// on the device is not flooded.
type Fallback struct {
	outbox  *Outbox
	stagger time.Duration
	now     func() time.Time
}

// NewFallback creates a dispatcher writing into outbox.
func NewFallback(outbox *Outbox, stagger time.Duration, now func() time.Time) *Fallback {
	if now == nil {
		now = time.Now
	}
	return &Fallback{outbox: outbox, stagger: stagger, now: now}
}

// Dispatch queues one link per contact and returns how many were queued.
func (f *Fallback) Dispatch(ctx context.Context, alertID string, contacts []profile.Contact, body string) (int, error) {
	limiter := rate.NewLimiter(rate.Every(f.stagger), 1)
	queued := 0
	for _, c := range contacts {
		if err := limiter.Wait(ctx); err != nil {
			return queued, err
		}
		link := SMSLink(c.Phone, body)
		f.outbox.Put(OutboxMessage{
			AlertID:   alertID,
			Contact:   c.Name,
			Phone:     c.Phone,
			Link:      link,
			CreatedAt: f.now(),
		})
		queued++
		log.Printf("Fallback SMS composed for %s", c.Name)
	}
	return queued, nil
}
