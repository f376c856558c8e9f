// Package incident records bounded pre/post-roll clips around a crash and
// keeps the sealed clips in a capacity-bounded gallery.
package incident

import (
	"errors"
	"sync"
	"time"

	"helmetguard-client/internal/bounded"
)

// ErrNotFound is returned when a gallery item does not exist.
var ErrNotFound = errors.New("gallery item not found")

// Item is a sealed incident clip.
type Item struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int       `json:"sizeBytes"`
	ChunkCount int       `json:"chunkCount"`
	StartedAt  time.Time `json:"startedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	Gforce     *float64  `json:"gforce"`

	Artifact []byte `json:"-"`
}

// Gallery holds the most recent sealed clips. It is shared between the
// controller, which adds clips, and the HTTP layer, which lists, downloads
// and deletes them.
type Gallery struct {
	mu        sync.RWMutex
	items     *bounded.List[*Item]
	onRelease func(Item)
}

// NewGallery creates a gallery holding at most capacity clips. onRelease, if
// set, is called with the metadata of every clip whose artifact is released
// by eviction or deletion.
func NewGallery(capacity int, onRelease func(Item)) *Gallery {
	g := &Gallery{onRelease: onRelease}
	g.items = bounded.New(capacity, g.release)
	return g
}

// release drops the artifact. Called with g.mu held.
func (g *Gallery) release(it *Item) {
	it.Artifact = nil
	if g.onRelease != nil {
		meta := *it
		g.onRelease(meta)
	}
}

// Add inserts it as the newest clip, evicting the oldest past capacity.
func (g *Gallery) Add(it *Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items.PushFront(it)
}

// List returns clip metadata newest first. Artifacts are not included.
func (g *Gallery) List() []Item {
	g.mu.RLock()
	defer g.mu.RUnlock()

	items := g.items.Items()
	out := make([]Item, 0, len(items))
	for _, it := range items {
		meta := *it
		meta.Artifact = nil
		out = append(out, meta)
	}
	return out
}

// Get returns a clip including its artifact.
func (g *Gallery) Get(id string) (Item, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	it, ok := g.items.Find(func(it *Item) bool { return it.ID == id })
	if !ok {
		return Item{}, ErrNotFound
	}
	return *it, nil
}

// Delete removes a clip and releases its artifact.
func (g *Gallery) Delete(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	it, ok := g.items.Remove(func(it *Item) bool { return it.ID == id })
	if !ok {
		return ErrNotFound
	}
	g.release(it)
	return nil
}

// Len returns the number of clips held.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.items.Len()
}
