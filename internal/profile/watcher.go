package profile

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Source serves the current profile and reloads it when the file changes.
type Source struct {
	path string

	mu      sync.RWMutex
	current Profile
}

// NewSource loads path once.
func NewSource(path string) (*Source, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded profile for %s with %d contacts", p.RiderName(), len(p.Contacts))
	return &Source{path: path, current: p}, nil
}

// Static wraps a fixed profile.
func Static(p Profile) *Source {
	return &Source{current: p}
}

// Current returns the latest loaded profile.
func (s *Source) Current() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the file. The previous profile is kept on error.
func (s *Source) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	log.Printf("Reloaded profile for %s with %d contacts", p.RiderName(), len(p.Contacts))
	return nil
}

// Watch reloads the profile whenever its file is written, until ctx ends.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("profile has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					log.Printf("Profile reload failed: %v", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Profile watcher error: %v", err)
		}
	}
}
