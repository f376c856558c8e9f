package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"helmetguard-client/config"
	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/api"
	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/db"
	"helmetguard-client/internal/incident"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/media"
	"helmetguard-client/internal/model"
	"helmetguard-client/internal/monitor"
	"helmetguard-client/internal/notification"
	"helmetguard-client/internal/profile"
	"helmetguard-client/internal/status"
	"helmetguard-client/internal/store"
)

type liveSource struct {
	ch chan media.Chunk
}

func (s *liveSource) Chunks() <-chan media.Chunk { return s.ch }
func (s *liveSource) Active() bool               { return true }

// TestEmergencyLifecycle drives the whole client through the HTTP API: a crash
// starts a recording, an emergency alerts the contacts through the backend and
// is audited in the database, and an operator stop seals the clip.
func TestEmergencyLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testDB, err := gorm.Open(sqlite.Open("file:helmetguard_lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))
	appStore := store.NewGormStore(testDB)

	var (
		mu       sync.Mutex
		requests []backend.EmergencyRequest
	)
	smsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/send-emergency-sms" {
			http.NotFound(w, r)
			return
		}
		var req backend.EmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"results":[{"contact":"Ravi","phone":"+919876543210","status":"sent"}]}`))
	}))
	defer smsServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC))
	pool := notification.NewWorkerPool(1, appStore, &webpush.Options{})
	pool.Start(ctx)

	tracker := location.NewTracker(clock)
	outbox := alert.NewOutbox(10)
	profiles := profile.Static(profile.Profile{
		Rider:    profile.Rider{Name: "Asha", BloodGroup: "O+"},
		Contacts: []profile.Contact{{Name: "Ravi", Phone: "9876543210", Relation: "Brother"}},
	})
	alerter := alert.New(alert.Options{
		Cooldown:        time.Minute,
		LocationTimeout: 5 * time.Second,
		Clock:           clock,
		Locator:         tracker,
		Backend:         backend.NewClient(smsServer.URL, 5*time.Second, time.Second),
		Audit:           appStore,
		Notifier:        pool,
		Profiles:        profiles,
		Fallback:        alert.NewFallback(outbox, time.Millisecond, clock.Now),
	})

	src := &liveSource{ch: make(chan media.Chunk, 8)}
	buffer := media.NewRollingBuffer(2 * time.Second)
	gallery := incident.NewGallery(10, nil)
	svc := monitor.New(monitor.Options{
		Clock:      clock,
		PostRecord: 20 * time.Second,
		Source:     src,
		Buffer:     buffer,
		Recorder:   incident.NewRecorder(buffer, src, gallery, "video/webm"),
		Machine:    status.NewMachine(50),
		Alerter:    alerter,
	})
	go svc.Run(ctx)

	router := api.NewRouter(ctx, api.Deps{
		Store:     appStore,
		Monitor:   svc,
		Gallery:   gallery,
		Locations: tracker,
		Sharer:    alerter,
		Outbox:    outbox,
		Profiles:  profiles,
	}, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTL: time.Second}, nil)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusNoContent, do(http.MethodPost, "/api/location", `{"lat":12.97,"lng":77.59}`).Code)

	src.ch <- media.Chunk{Seq: 1, CapturedAt: clock.Now(), Data: []byte("pre;")}
	require.Equal(t, http.StatusAccepted, do(http.MethodPost, "/api/telemetry", `{"status":"SAFE","live_gforce":1.0}`).Code)
	require.Equal(t, http.StatusAccepted, do(http.MethodPost, "/api/telemetry", `{"status":"CRASH DETECTED","crash_gforce":4.2}`).Code)

	assert.Eventually(t, func() bool {
		return svc.Overview().Recording.State == incident.StateCapturing.String()
	}, time.Second, 10*time.Millisecond)

	src.ch <- media.Chunk{Seq: 2, CapturedAt: clock.Now(), Data: []byte("live;")}
	require.Equal(t, http.StatusAccepted, do(http.MethodPost, "/api/telemetry", `{"status":"EMERGENCY","crash_gforce":4.2}`).Code)

	assert.Eventually(t, func() bool {
		var rec model.AlertRecord
		if err := testDB.First(&rec).Error; err != nil {
			return false
		}
		return rec.Outcome == store.OutcomeAllSent
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	require.Len(t, requests, 1)
	assert.Equal(t, "Asha", requests[0].RiderName)
	assert.Equal(t, "4.2", requests[0].CrashGforce)
	require.NotNil(t, requests[0].Latitude)
	assert.Equal(t, 12.97, *requests[0].Latitude)
	mu.Unlock()

	w := do(http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"all_sent"`)
	assert.Contains(t, w.Body.String(), `"sentCount":1`)

	assert.Eventually(t, func() bool {
		rs := svc.Overview().Recording
		return rs.LiveCount+rs.PreRoll == 2
	}, time.Second, 10*time.Millisecond)

	w = do(http.MethodPost, "/api/recording/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())

	items := gallery.List()
	require.Len(t, items, 1)
	clip, err := gallery.Get(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "pre;live;", string(clip.Artifact))

	w = do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"EMERGENCY"`)
	assert.Contains(t, w.Body.String(), `"incidents":1`)
	assert.Empty(t, outbox.List())
}
