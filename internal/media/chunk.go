// Package media holds the captured video chunks, the rolling pre-roll buffer
// and the sources that produce chunks.
package media

import "time"

// Chunk is one time-stamped segment of encoded video. Data is never mutated
// after the chunk is produced.
type Chunk struct {
	// Seq is the per-source sequence number
	Seq uint64
	// CapturedAt is when the chunk was produced
	CapturedAt time.Time
	// Data is the opaque encoded segment
	Data []byte
}

// Size returns the payload length in bytes.
func (c Chunk) Size() int { return len(c.Data) }

// Source produces chunks from a capture device.
type Source interface {
	// Chunks delivers produced chunks in production order.
	Chunks() <-chan Chunk
	// Active reports whether the device is currently producing chunks.
	Active() bool
}
