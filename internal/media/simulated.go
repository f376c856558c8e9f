package media

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SimulatedSource generates synthetic chunks at a fixed interval. It stands in
// for a camera on bench runs.
type SimulatedSource struct {
	clock    clockwork.Clock
	interval time.Duration
	size     int

	chunksCh chan Chunk
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu        sync.RWMutex
	seq       uint64
	isRunning bool
	startTime time.Time
}

// NewSimulatedSource creates a simulated source emitting size-byte chunks.
func NewSimulatedSource(clock clockwork.Clock, interval time.Duration, size int) *SimulatedSource {
	if size <= 0 {
		size = 1024
	}
	return &SimulatedSource{
		clock:    clock,
		interval: interval,
		size:     size,
		chunksCh: make(chan Chunk, 4),
		stopCh:   make(chan struct{}),
	}
}

// Start begins generating chunks.
func (s *SimulatedSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("simulated source already running")
	}
	s.isRunning = true
	s.startTime = s.clock.Now()
	s.mu.Unlock()

	log.Printf("Simulated media source starting (interval %s, %d bytes per chunk)", s.interval, s.size)

	s.wg.Add(1)
	go s.generate(ctx)
	return nil
}

func (s *SimulatedSource) generate(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.Chan():
			s.mu.Lock()
			s.seq++
			seq := s.seq
			s.mu.Unlock()

			data := make([]byte, s.size)
			copy(data, fmt.Sprintf("SIM%08d", seq))
			select {
			case s.chunksCh <- Chunk{Seq: seq, CapturedAt: now, Data: data}:
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}
}

// Chunks returns the chunk channel.
func (s *SimulatedSource) Chunks() <-chan Chunk { return s.chunksCh }

// Active reports whether the generator is running.
func (s *SimulatedSource) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Stop halts generation. The chunk channel stays open.
func (s *SimulatedSource) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	log.Printf("Simulated media source stopped after %d chunks (%s)", s.seq, s.clock.Since(s.startTime))
	return nil
}
