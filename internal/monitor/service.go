// Package monitor owns the incident pipeline. A single goroutine consumes
// telemetry snapshots, media chunks, the post-roll timer and operator
// commands, so the buffer, recorder, status machine and alert guard are never
// touched concurrently.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/incident"
	"helmetguard-client/internal/media"
	"helmetguard-client/internal/status"
)

// ErrStopped is returned when the service is no longer running.
var ErrStopped = errors.New("monitor is not running")

// Archiver copies sealed clips somewhere durable.
type Archiver interface {
	Upload(ctx context.Context, it incident.Item) error
}

// Options wires a Service.
type Options struct {
	Clock      clockwork.Clock
	PostRecord time.Duration
	Source     media.Source
	Buffer     *media.RollingBuffer
	Recorder   *incident.Recorder
	Machine    *status.Machine
	Alerter    *alert.Alerter
	Archiver   Archiver
}

type stopRequest struct {
	reply chan bool
}

// Service is the controller.
type Service struct {
	clock      clockwork.Clock
	postRecord time.Duration
	source     media.Source
	buffer     *media.RollingBuffer
	recorder   *incident.Recorder
	machine    *status.Machine
	alerter    *alert.Alerter
	archiver   Archiver

	snapshots chan status.Snapshot
	stops     chan stopRequest
	done      chan struct{}
	started   chan struct{}
	startOnce sync.Once

	// owned by the loop goroutine
	timer        clockwork.Timer
	timerCapture uint64

	archiveWG sync.WaitGroup

	mu       sync.RWMutex
	overview Overview
}

// New creates a Service. Run must be called to start it.
func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	s := &Service{
		clock:      opts.Clock,
		postRecord: opts.PostRecord,
		source:     opts.Source,
		buffer:     opts.Buffer,
		recorder:   opts.Recorder,
		machine:    opts.Machine,
		alerter:    opts.Alerter,
		archiver:   opts.Archiver,
		snapshots:  make(chan status.Snapshot),
		stops:      make(chan stopRequest),
		done:       make(chan struct{}),
		started:    make(chan struct{}),
	}
	s.alerter.SetOnResult(s.recordAlertResult)
	s.publish(s.clock.Now())
	return s
}

// Submit hands a snapshot to the controller. Snapshots are processed
// strictly in submission order.
func (s *Service) Submit(ctx context.Context, snap status.Snapshot) error {
	select {
	case s.snapshots <- snap:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopRecording seals the current capture early. It reports whether a
// capture was running.
func (s *Service) StopRecording(ctx context.Context) (bool, error) {
	req := stopRequest{reply: make(chan bool, 1)}
	select {
	case s.stops <- req:
	case <-s.done:
		return false, ErrStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case stopped := <-req.reply:
		return stopped, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Done is closed once Run has returned.
func (s *Service) Done() <-chan struct{} { return s.done }

// Run processes events until ctx ends. An active capture is sealed on the
// way out.
func (s *Service) Run(ctx context.Context) {
	started := false
	s.startOnce.Do(func() { started = true })
	if !started {
		log.Println("Monitor already running.")
		return
	}
	defer close(s.done)
	log.Println("Starting monitor service...")

	var chunks <-chan media.Chunk
	if s.source != nil {
		chunks = s.source.Chunks()
	}

	for {
		select {
		case <-ctx.Done():
			now := s.clock.Now()
			s.stopRecording(now, "shutdown")
			s.publish(now)
			s.archiveWG.Wait()
			log.Println("Monitor service shutting down.")
			return

		case c, ok := <-chunks:
			if !ok {
				log.Println("Media source closed; no more chunks.")
				chunks = nil
				continue
			}
			now := s.clock.Now()
			s.handleChunk(c, now)
			s.publish(now)

		case snap := <-s.snapshots:
			now := s.clock.Now()
			s.handleSnapshot(ctx, snap, now)
			s.publish(now)

		case <-s.timerChan():
			now := s.clock.Now()
			s.handlePostRoll(now)
			s.publish(now)

		case req := <-s.stops:
			now := s.clock.Now()
			req.reply <- s.stopRecording(now, "operator")
			s.publish(now)
		}
	}
}

func (s *Service) handleChunk(c media.Chunk, now time.Time) {
	s.recorder.Accept(c, now)
}

// handleSnapshot runs one reducer step: compute the transition, execute its
// actions against the previous status, then commit.
func (s *Service) handleSnapshot(ctx context.Context, snap status.Snapshot, now time.Time) {
	s.machine.Observe(snap)
	tr := s.machine.Next(snap, now)
	if !tr.Changed {
		return
	}
	log.Printf("Status %q -> %q", tr.Previous, tr.Record.Raw)

	for _, act := range tr.Actions {
		switch act {
		case status.ActionStartRecording:
			s.startRecording(now)
		case status.ActionTriggerAlert:
			s.alerter.MaybeTrigger(ctx, snap, now)
		case status.ActionResetDedup:
			s.alerter.ResetDedup()
		}
	}
	s.machine.Commit(tr)
}

func (s *Service) startRecording(now time.Time) {
	started, err := s.recorder.Start(now)
	if err != nil {
		log.Printf("Incident recording skipped: %v", err)
		return
	}
	if !started {
		return
	}
	s.disarm()
	s.timer = s.clock.NewTimer(s.postRecord)
	s.timerCapture = s.recorder.CaptureID()
}

func (s *Service) handlePostRoll(now time.Time) {
	captureID := s.timerCapture
	s.timer = nil
	s.timerCapture = 0
	if captureID != s.recorder.CaptureID() {
		return
	}
	s.stopRecording(now, "post-roll elapsed")
}

// stopRecording is the single sealing path shared by the timer, operator
// stop and shutdown.
func (s *Service) stopRecording(now time.Time, reason string) bool {
	if !s.recorder.Capturing() {
		return false
	}
	s.disarm()
	log.Printf("Stopping incident capture (%s)", reason)
	item, ok := s.recorder.Stop(now, s.machine.LiveGforce())
	if ok && s.archiver != nil {
		s.archive(*item)
	}
	return true
}

func (s *Service) archive(it incident.Item) {
	s.archiveWG.Add(1)
	go func() {
		defer s.archiveWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.archiver.Upload(ctx, it); err != nil {
			log.Printf("Archiving %s failed: %v", it.Filename, err)
			return
		}
		log.Printf("Archived %s", it.Filename)
	}()
}

func (s *Service) disarm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.timerCapture = 0
}

func (s *Service) timerChan() <-chan time.Time {
	if s.timer == nil {
		return nil
	}
	return s.timer.Chan()
}
