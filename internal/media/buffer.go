package media

import "time"

// RollingBuffer retains the chunks produced within the last window. Eviction
// is purely age based and runs on every insertion. It is owned by a single
// goroutine and does no locking.
type RollingBuffer struct {
	window time.Duration
	chunks []Chunk
}

// NewRollingBuffer creates a buffer retaining window worth of chunks.
func NewRollingBuffer(window time.Duration) *RollingBuffer {
	return &RollingBuffer{window: window}
}

// Push appends c and drops every chunk older than the window at now.
func (b *RollingBuffer) Push(c Chunk, now time.Time) {
	b.chunks = append(b.chunks, c)
	b.evict(now)
}

func (b *RollingBuffer) evict(now time.Time) {
	kept := b.chunks[:0]
	for _, c := range b.chunks {
		if now.Sub(c.CapturedAt) <= b.window {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(b.chunks); i++ {
		b.chunks[i] = Chunk{}
	}
	b.chunks = kept
}

// Snapshot returns the retained chunks oldest first without mutating the
// buffer.
func (b *RollingBuffer) Snapshot() []Chunk {
	out := make([]Chunk, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// Depth is the age of the oldest retained chunk, zero when empty.
func (b *RollingBuffer) Depth(now time.Time) time.Duration {
	if len(b.chunks) == 0 {
		return 0
	}
	return now.Sub(b.chunks[0].CapturedAt)
}

// Len returns the number of retained chunks.
func (b *RollingBuffer) Len() int { return len(b.chunks) }

// Window returns the retention window.
func (b *RollingBuffer) Window() time.Duration { return b.window }
