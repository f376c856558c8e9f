package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"helmetguard-client/config"
	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/incident"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/model"
	"helmetguard-client/internal/monitor"
	"helmetguard-client/internal/profile"
	"helmetguard-client/internal/status"
	"helmetguard-client/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeStore struct {
	mu      sync.Mutex
	alerts  map[string]*model.AlertRecord
	subs    map[string]*model.PushSubscription
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: map[string]*model.AlertRecord{}, subs: map[string]*model.PushSubscription{}}
}

func (s *fakeStore) SaveAlert(_ context.Context, rec *model.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[rec.ID] = rec
	return nil
}

func (s *fakeStore) UpdateAlertOutcome(context.Context, string, store.AlertOutcome) error { return nil }

func (s *fakeStore) GetAlert(_ context.Context, id string) (*model.AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.alerts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) ListAlerts(_ context.Context, limit int) ([]model.AlertRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AlertRecord{}
	for _, rec := range s.alerts {
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *fakeStore) UpsertSubscription(_ context.Context, sub *model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.Endpoint] = sub
	return nil
}

func (s *fakeStore) GetSubscription(_ context.Context, endpoint string) (*model.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[endpoint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sub, nil
}

func (s *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, endpoint)
	return nil
}

func (s *fakeStore) ListSubscriptions(context.Context) ([]model.PushSubscription, error) {
	return nil, nil
}

func (s *fakeStore) DB() *gorm.DB { return nil }

type fakeMonitor struct {
	overview  monitor.Overview
	submitted []status.Snapshot
	stopped   bool
	err       error
}

func (m *fakeMonitor) Overview() monitor.Overview { return m.overview }

func (m *fakeMonitor) Submit(_ context.Context, snap status.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.submitted = append(m.submitted, snap)
	return nil
}

func (m *fakeMonitor) StopRecording(context.Context) (bool, error) { return m.stopped, m.err }

type fakeLocations struct{ fixes []location.Fix }

func (l *fakeLocations) Update(f location.Fix) { l.fixes = append(l.fixes, f) }

type fakeSharer struct {
	res *alert.ShareResult
	err error
}

func (s fakeSharer) ShareLocation(context.Context) (*alert.ShareResult, error) { return s.res, s.err }

type fakeProber struct {
	calls  int
	health *backend.Health
	err    error
}

func (p *fakeProber) BaseURL() string { return "http://backend.local" }

func (p *fakeProber) Health(context.Context) (*backend.Health, error) {
	p.calls++
	return p.health, p.err
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Minute}
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	mon := &fakeMonitor{overview: monitor.Overview{Status: "EMERGENCY", Incidents: 2, Updates: 7}}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: mon}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"EMERGENCY"`)
	assert.Contains(t, w.Body.String(), `"incidents":2`)
	assert.Contains(t, w.Body.String(), `"updates":7`)
}

func TestPostTelemetry(t *testing.T) {
	mon := &fakeMonitor{}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: mon}, testConfig(), nil)

	w := do(r, http.MethodPost, "/api/telemetry", `{"status":"CRASH DETECTED","crash_gforce":4.2}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, mon.submitted, 1)
	assert.Equal(t, "CRASH DETECTED", mon.submitted[0].Status)

	w = do(r, http.MethodPost, "/api/telemetry", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mon.err = monitor.ErrStopped
	w = do(r, http.MethodPost, "/api/telemetry", `{"status":"SAFE"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStopRecording(t *testing.T) {
	mon := &fakeMonitor{stopped: true}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: mon}, testConfig(), nil)

	w := do(r, http.MethodPost, "/api/recording/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())

	mon.err = errors.New("boom")
	w = do(r, http.MethodPost, "/api/recording/stop", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGallery(t *testing.T) {
	g := incident.NewGallery(10, nil)
	g.Add(&incident.Item{
		ID:       "clip-1",
		Filename: "HelmetGuard_Incident_2026-03-01T10-00-00.webm",
		MimeType: "video/webm",
		Artifact: []byte("abc"),
	})
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Gallery: g}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/gallery", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clip-1")

	w = do(r, http.MethodGet, "/api/gallery/clip-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "video/webm", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="HelmetGuard_Incident_2026-03-01T10-00-00.webm"`, w.Header().Get("Content-Disposition"))

	w = do(r, http.MethodDelete, "/api/gallery/clip-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/gallery/clip-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, "/api/gallery/clip-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostLocation(t *testing.T) {
	locs := &fakeLocations{}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Locations: locs}, testConfig(), nil)

	w := do(r, http.MethodPost, "/api/location", `{"lat":12.97,"lng":77.59,"accuracy":8}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, locs.fixes, 1)
	assert.Equal(t, 12.97, locs.fixes[0].Lat)

	w = do(r, http.MethodPost, "/api/location", `{"lat":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/location", `{"lat":91,"lng":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, locs.fixes, 1)
}

func TestShareLocation(t *testing.T) {
	tests := []struct {
		name   string
		sharer fakeSharer
		code   int
	}{
		{"shared", fakeSharer{res: &alert.ShareResult{Sent: 2, Message: "Location shared with 2 contacts"}}, http.StatusOK},
		{"no fix", fakeSharer{err: location.ErrNoFix}, http.StatusConflict},
		{"no contacts", fakeSharer{err: profile.ErrNoContacts}, http.StatusUnprocessableEntity},
		{"backend error", fakeSharer{err: errors.New("rejected")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Sharer: tt.sharer}, testConfig(), nil)
			w := do(r, http.MethodPost, "/api/share-location", "")
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAlerts(t *testing.T) {
	s := newFakeStore()
	require.NoError(t, s.SaveAlert(context.Background(), &model.AlertRecord{ID: "01HXALERT", RiderName: "Asha", Outcome: store.OutcomeAllSent}))
	r := NewRouter(context.Background(), Deps{Store: s, Monitor: &fakeMonitor{}}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/alerts?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "01HXALERT")

	w = do(r, http.MethodGet, "/api/alerts?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/alerts/01HXALERT", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Asha")

	w = do(r, http.MethodGet, "/api/alerts/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.listErr = errors.New("db down")
	w = do(r, http.MethodGet, "/api/alerts", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOutboxAndProfile(t *testing.T) {
	outbox := alert.NewOutbox(5)
	outbox.Put(alert.OutboxMessage{Contact: "Ravi", Phone: "+919876543210", Link: "sms:+919876543210?body=hi"})
	prof := profile.Static(profile.Profile{Rider: profile.Rider{Name: "Asha"}})
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Outbox: outbox, Profiles: prof}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/outbox", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sms:+919876543210?body=hi")

	w = do(r, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Asha"`)
}

func TestUnconfiguredCollaborators(t *testing.T) {
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}}, testConfig(), nil)

	for _, target := range []string{"/api/gallery", "/api/outbox", "/api/profile", "/api/backend", "/api/vapid_public_key"} {
		w := do(r, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
}

func TestGetBackend_CachesHealthyProbe(t *testing.T) {
	prober := &fakeProber{health: &backend.Health{Status: "running", Twilio: "connected", Version: "1.2.0"}}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Backend: prober}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/backend", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"http://backend.local","reachable":true,"running":true,"smsConnected":true,"version":"1.2.0"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/backend", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, prober.calls)
}

func TestGetBackend_Unreachable(t *testing.T) {
	prober := &fakeProber{err: backend.ErrUnreachable}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, Backend: prober}, testConfig(), nil)

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodGet, "/api/backend", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"reachable":false`)
	}
	assert.Equal(t, 2, prober.calls)
}

func TestSubscriptions(t *testing.T) {
	s := newFakeStore()
	r := NewRouter(context.Background(), Deps{Store: s, Monitor: &fakeMonitor{}}, testConfig(), nil)

	w := do(r, http.MethodPut, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	endpoint := "https://push.example.com/send/abc%3D%3D"
	w = do(r, http.MethodPut, "/api/subscriptions", `{"endpoint":"`+endpoint+`","p256dh":"key","auth":"secret","label":"phone"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"phone"`)

	w = do(r, http.MethodGet, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	opts := &webpush.Options{VAPIDPublicKey: "BPUBLIC"}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}, WebPush: opts}, testConfig(), nil)

	w := do(r, http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPUBLIC"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	cfg := config.ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 1}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}}, cfg, nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/status", "").Code)
}

func TestMediaRoute(t *testing.T) {
	media := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: &fakeMonitor{}}, testConfig(), media)

	assert.Equal(t, http.StatusTeapot, do(r, http.MethodGet, "/ws/media", "").Code)
}

func TestDeviceIngressIsNotRateLimited(t *testing.T) {
	mon := &fakeMonitor{}
	locs := &fakeLocations{}
	cfg := config.ServerConfig{RateLimitPerSec: 10, RateLimitBurst: 5}
	r := NewRouter(context.Background(), Deps{Store: newFakeStore(), Monitor: mon, Locations: locs}, cfg, nil)

	sequence := []string{"SAFE", "SAFE", "SAFE", "SAFE", "SAFE", "SAFE", "CRASH DETECTED", "CRASH DETECTED", "EMERGENCY"}
	for _, st := range sequence {
		w := do(r, http.MethodPost, "/api/telemetry", `{"status":"`+st+`"}`)
		require.Equal(t, http.StatusAccepted, w.Code, st)
	}
	for i := 0; i < 8; i++ {
		w := do(r, http.MethodPost, "/api/location", `{"lat":12.97,"lng":77.59}`)
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	require.Len(t, mon.submitted, len(sequence))
	assert.Equal(t, "EMERGENCY", mon.submitted[len(sequence)-1].Status)
	assert.Len(t, locs.fixes, 8)

	codes := 0
	for i := 0; i < 6; i++ {
		if do(r, http.MethodGet, "/api/status", "").Code == http.StatusTooManyRequests {
			codes++
		}
	}
	assert.Positive(t, codes, "UI routes stay limited")
}
