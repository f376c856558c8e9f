package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"helmetguard-client/config"
	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/api"
	"helmetguard-client/internal/archive"
	"helmetguard-client/internal/backend"
	"helmetguard-client/internal/db"
	"helmetguard-client/internal/incident"
	"helmetguard-client/internal/location"
	"helmetguard-client/internal/media"
	"helmetguard-client/internal/monitor"
	"helmetguard-client/internal/notification"
	"helmetguard-client/internal/profile"
	"helmetguard-client/internal/status"
	"helmetguard-client/internal/store"
	"helmetguard-client/internal/telemetry"
)

const (
	outboxSize      = 50
	mediaQueueSize  = 16
	simulatedChunk  = 32 * 1024
	shutdownTimeout = 5 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor and local API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.New(os.Stdout, "helmetguard ", log.LstdFlags)
	logger.Printf("configuration loaded from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
			Urgency:         webpush.UrgencyHigh,
		}
	} else {
		logger.Println("VAPID keys are not configured; device notifications are disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Workers outlive the signal context so in-flight alerts can still queue
	// their notification during shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	var notifier alert.Notifier = discardNotifier{}
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(workerCtx)
		notifier = pool
	}

	profiles, err := profile.NewSource(cfg.Profile.Path)
	if err != nil {
		return fmt.Errorf("failed to load rider profile: %w", err)
	}
	if cfg.Profile.Watch {
		if err := profiles.Watch(ctx); err != nil {
			logger.Printf("profile watch disabled: %v", err)
		}
	}

	clock := clockwork.NewRealClock()
	tracker := location.NewTracker(clock)
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, cfg.Backend.HealthTimeout)
	outbox := alert.NewOutbox(outboxSize)

	alerter := alert.New(alert.Options{
		Cooldown:        cfg.Alert.Cooldown,
		LocationTimeout: cfg.Alert.LocationTimeout,
		Clock:           clock,
		Locator:         tracker,
		Backend:         client,
		Audit:           appStore,
		Notifier:        notifier,
		Profiles:        profiles,
		Fallback:        alert.NewFallback(outbox, cfg.Alert.FallbackStagger, clock.Now),
	})

	source, mediaHandler, err := newMediaSource(ctx, clock, &cfg.Capture)
	if err != nil {
		return err
	}

	buffer := media.NewRollingBuffer(cfg.Capture.PreBuffer)
	gallery := incident.NewGallery(cfg.Capture.GallerySize, func(it incident.Item) {
		logger.Printf("clip %s released from gallery", it.Filename)
	})
	recorder := incident.NewRecorder(buffer, source, gallery, cfg.Capture.MimeType)

	var archiver monitor.Archiver
	if cfg.Archive.Enabled {
		storage, err := archive.New(&cfg.Archive)
		if err != nil {
			return err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return err
		}
		archiver = storage
		logger.Printf("archiving clips to bucket %s", cfg.Archive.Bucket)
	}

	svc := monitor.New(monitor.Options{
		Clock:      clock,
		PostRecord: cfg.Capture.PostRecord,
		Source:     source,
		Buffer:     buffer,
		Recorder:   recorder,
		Machine:    status.NewMachine(cfg.Alert.HistorySize),
		Alerter:    alerter,
		Archiver:   archiver,
	})
	go svc.Run(ctx)

	var sub *telemetry.Subscriber
	if cfg.Telemetry.Enabled {
		sub = telemetry.NewSubscriber(&cfg.Telemetry, svc)
		if err := sub.Connect(ctx); err != nil {
			logger.Printf("telemetry subscriber failed to connect: %v", err)
		}
	}

	router := api.NewRouter(ctx, api.Deps{
		Store:     appStore,
		WebPush:   webpushOptions,
		Monitor:   svc,
		Gallery:   gallery,
		Locations: tracker,
		Sharer:    alerter,
		Outbox:    outbox,
		Backend:   client,
		Profiles:  profiles,
	}, cfg.Server, mediaHandler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	<-svc.Done()
	alerter.Wait()
	stopWorkers()

	if sub != nil {
		_, received, malformed := sub.Stats()
		logger.Printf("telemetry: %d snapshots received, %d malformed", received, malformed)
	}
	if ws, ok := source.(*media.WebsocketSource); ok {
		logger.Printf("media: %d chunks received", ws.Received())
	}
	logger.Println("Server gracefully stopped")
	return nil
}

// newMediaSource returns the chunk source and, for a camera, the handler it
// is fed through.
func newMediaSource(ctx context.Context, clock clockwork.Clock, cfg *config.CaptureConfig) (media.Source, http.Handler, error) {
	if cfg.Simulate {
		sim := media.NewSimulatedSource(clock, cfg.ChunkInterval, simulatedChunk)
		if err := sim.Start(ctx); err != nil {
			return nil, nil, err
		}
		return sim, nil, nil
	}
	ws := media.NewWebsocketSource(clock, mediaQueueSize)
	return ws, ws, nil
}

type discardNotifier struct{}

func (discardNotifier) Dispatch(_ context.Context, n notification.Notification) error {
	log.Printf("Notification %q not delivered: push is not configured", n.Title)
	return nil
}
