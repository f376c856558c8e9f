package alert

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/model"
	"helmetguard-client/internal/notification"
	"helmetguard-client/internal/profile"
	"helmetguard-client/internal/status"
	"helmetguard-client/internal/store"
)

// Locator resolves the rider's position.
type Locator interface {
	Latest() (location.Fix, bool)
	Resolve(ctx context.Context, timeout time.Duration) (location.Fix, error)
}

// Backend fans out SMS to contacts.
type Backend interface {
	SendEmergencySMS(ctx context.Context, req backend.EmergencyRequest) (*backend.Response, error)
	ShareLocation(ctx context.Context, req backend.ShareLocationRequest) (*backend.Response, error)
}

// AuditLog persists alert attempts.
type AuditLog interface {
	SaveAlert(ctx context.Context, rec *model.AlertRecord) error
	UpdateAlertOutcome(ctx context.Context, id string, outcome store.AlertOutcome) error
}

// Notifier raises a notification on the rider's own devices.
type Notifier interface {
	Dispatch(ctx context.Context, n notification.Notification) error
}

// Profiles serves the current rider profile.
type Profiles interface {
	Current() profile.Profile
}

// Result describes how one alert attempt concluded.
type Result struct {
	AlertID     string   `json:"alertId"`
	Outcome     string   `json:"outcome"`
	Sent        int      `json:"sent"`
	Failed      []string `json:"failed"`
	Contacts    int      `json:"contacts"`
	HasLocation bool     `json:"hasLocation"`
	Message     string   `json:"message"`
}

// Options wires an Alerter.
type Options struct {
	Cooldown        time.Duration
	LocationTimeout time.Duration
	Clock           clockwork.Clock

	Locator  Locator
	Backend  Backend
	Audit    AuditLog
	Notifier Notifier
	Profiles Profiles
	Fallback *Fallback

	// OnResult, if set, is called from the delivery goroutine when an
	// attempt concludes.
	OnResult func(Result)
}

// Alerter runs the emergency alert protocol. MaybeTrigger and ResetDedup are
// called from the controller goroutine; delivery runs in the background.
type Alerter struct {
	opts  Options
	dedup *Dedup

	wg        sync.WaitGroup
	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// New creates an Alerter.
func New(opts Options) *Alerter {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Alerter{
		opts:    opts,
		dedup:   NewDedup(opts.Cooldown),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// SetOnResult replaces the result hook. It must be called before the first
// trigger.
func (a *Alerter) SetOnResult(fn func(Result)) { a.opts.OnResult = fn }

// Dedup returns the guard state.
func (a *Alerter) Dedup() DedupState { return a.dedup.State() }

// ResetDedup clears the sent flag after the rider is SAFE again.
func (a *Alerter) ResetDedup() { a.dedup.Reset() }

// MaybeTrigger starts an alert attempt for snap unless one was sent within
// the cooldown. It returns whether an attempt was started. The dedup state is
// committed before returning. Delivery is bounded by the location and
// request timeouts only; cancelling ctx does not abort an attempt.
func (a *Alerter) MaybeTrigger(ctx context.Context, snap status.Snapshot, now time.Time) bool {
	if !a.dedup.Allow(now) {
		log.Printf("Emergency alert already sent %s ago; skipping", now.Sub(a.dedup.State().LastAlertAt))
		return false
	}
	a.dedup.Commit(now)

	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res := a.deliver(ctx, snap, now)
		if a.opts.OnResult != nil {
			a.opts.OnResult(res)
		}
	}()
	return true
}

// Wait blocks until all in-flight attempts have concluded.
func (a *Alerter) Wait() { a.wg.Wait() }

func (a *Alerter) newID(at time.Time) string {
	a.entropyMu.Lock()
	defer a.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), a.entropy).String()
}

func (a *Alerter) deliver(ctx context.Context, snap status.Snapshot, at time.Time) Result {
	prof := a.opts.Profiles.Current()
	rider := prof.RiderName()
	gforce := CrashGforce(snap)

	var fix *location.Fix
	if f, err := a.opts.Locator.Resolve(ctx, a.opts.LocationTimeout); err != nil {
		log.Printf("Proceeding without location: %v", err)
	} else {
		fix = &f
	}
	mapLink := MapLink(fix)

	rec := &model.AlertRecord{
		ID:           a.newID(at),
		TriggeredAt:  at,
		RiderName:    rider,
		RiderPhone:   prof.Rider.Phone,
		BloodGroup:   prof.Rider.BloodGroup,
		Vehicle:      prof.Rider.Vehicle,
		CrashGforce:  gforce,
		MapLink:      mapLink,
		ContactCount: len(prof.Contacts),
		Outcome:      store.OutcomePending,
	}
	if fix != nil {
		lat, lng := fix.Lat, fix.Lng
		rec.Latitude, rec.Longitude = &lat, &lng
	}
	if err := a.opts.Audit.SaveAlert(ctx, rec); err != nil {
		log.Printf("Failed to record alert %s: %v", rec.ID, err)
	}

	res := Result{AlertID: rec.ID, Contacts: len(prof.Contacts), HasLocation: fix != nil}
	if len(prof.Contacts) == 0 {
		res.Outcome = store.OutcomeNoContacts
		res.Message = "No emergency contacts!"
		log.Printf("Emergency alert %s: no contacts registered, nothing sent", rec.ID)
	} else {
		a.send(ctx, rec, prof, fix, &res)
	}

	n := notification.Notification{
		Title:              notificationTitle,
		Body:               notificationBody(rider),
		Tag:                "emergency",
		RequireInteraction: true,
	}
	if err := a.opts.Notifier.Dispatch(ctx, n); err != nil {
		log.Printf("Local notification for alert %s not raised: %v", rec.ID, err)
	}

	if err := a.opts.Audit.UpdateAlertOutcome(ctx, rec.ID, store.AlertOutcome{
		Outcome:        res.Outcome,
		SentCount:      res.Sent,
		FailedCount:    len(res.Failed),
		FailedContacts: res.Failed,
		Message:        res.Message,
	}); err != nil {
		log.Printf("Failed to record outcome of alert %s: %v", rec.ID, err)
	}
	return res
}

func (a *Alerter) send(ctx context.Context, rec *model.AlertRecord, prof profile.Profile, fix *location.Fix, res *Result) {
	req := backend.EmergencyRequest{
		RiderName:   prof.RiderName(),
		RiderPhone:  prof.Rider.Phone,
		BloodGroup:  orUnknown(prof.Rider.BloodGroup),
		Vehicle:     orUnknown(prof.Rider.Vehicle),
		CrashGforce: rec.CrashGforce,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		Contacts:    toBackend(prof.Contacts),
	}

	resp, err := a.opts.Backend.SendEmergencySMS(ctx, req)
	switch {
	case errors.Is(err, backend.ErrUnreachable):
		log.Printf("Backend unreachable for alert %s, composing SMS locally: %v", rec.ID, err)
		body := fallbackBody(req.RiderName, MapLink(fix), rec.CrashGforce, prof.Rider.BloodGroup, a.opts.Clock.Now())
		queued, ferr := a.opts.Fallback.Dispatch(ctx, rec.ID, prof.Contacts, body)
		if ferr != nil {
			log.Printf("Fallback dispatch for alert %s interrupted: %v", rec.ID, ferr)
		}
		res.Outcome = store.OutcomeFallback
		res.Message = fmt.Sprintf("Server unreachable; SMS composed for %d/%d contacts", queued, len(prof.Contacts))
	case err != nil:
		res.Outcome = store.OutcomeRejected
		res.Message = err.Error()
		log.Printf("Emergency alert %s not sent: %v", rec.ID, err)
	case !resp.Success:
		res.Outcome = store.OutcomeRejected
		res.Message = "SMS sending failed"
		if resp.Detail != "" {
			res.Message += ": " + resp.Detail
		}
		log.Printf("Emergency alert %s rejected by backend (status %d)", rec.ID, resp.StatusCode)
	default:
		res.Sent = len(resp.Sent())
		for _, f := range resp.Failed() {
			res.Failed = append(res.Failed, f.Contact)
			log.Printf("SMS failed for %s: %s", f.Contact, f.Error)
		}
		switch {
		case len(res.Failed) == 0:
			res.Outcome = store.OutcomeAllSent
			res.Message = fmt.Sprintf("Emergency SMS sent to all %d contacts", res.Sent)
		case res.Sent == 0:
			res.Outcome = store.OutcomeAllFailed
			res.Message = "SMS failed for every contact"
		default:
			res.Outcome = store.OutcomePartial
			res.Message = fmt.Sprintf("SMS sent to %d/%d", res.Sent, len(prof.Contacts))
		}
		log.Printf("Emergency alert %s: %s", rec.ID, res.Message)
	}
}

// ShareResult describes a location share.
type ShareResult struct {
	Sent     int    `json:"sent"`
	Fallback bool   `json:"fallback"`
	Message  string `json:"message"`
}

// ShareLocation sends the current position to every contact. It needs a
// known fix and at least one contact. When the backend is unreachable a
// single SMS link to the first contact is composed instead.
func (a *Alerter) ShareLocation(ctx context.Context) (*ShareResult, error) {
	fix, ok := a.opts.Locator.Latest()
	if !ok {
		return nil, location.ErrNoFix
	}
	prof := a.opts.Profiles.Current()
	if len(prof.Contacts) == 0 {
		return nil, profile.ErrNoContacts
	}

	resp, err := a.opts.Backend.ShareLocation(ctx, backend.ShareLocationRequest{
		RiderName: prof.RiderName(),
		Latitude:  fix.Lat,
		Longitude: fix.Lng,
		Contacts:  toBackend(prof.Contacts),
	})
	switch {
	case errors.Is(err, backend.ErrUnreachable):
		body := shareBody(prof.RiderName(), fix.MapLink())
		if _, ferr := a.opts.Fallback.Dispatch(ctx, "", prof.Contacts[:1], body); ferr != nil {
			return nil, ferr
		}
		return &ShareResult{Fallback: true, Message: "Server offline, opening SMS"}, nil
	case err != nil:
		return nil, err
	case !resp.Success:
		return &ShareResult{Message: "Failed to share"}, nil
	}
	sent := len(resp.Sent())
	return &ShareResult{Sent: sent, Message: fmt.Sprintf("Location shared with %d contacts", sent)}, nil
}

func toBackend(contacts []profile.Contact) []backend.Contact {
	out := make([]backend.Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, backend.Contact{Name: c.Name, Phone: c.Phone, Relation: c.Relation})
	}
	return out
}
