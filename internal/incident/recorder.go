package incident

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"helmetguard-client/internal/media"
)

// ErrSourceInactive is returned by Start when the capture device is not
// producing chunks. Recording is skipped, not retried.
var ErrSourceInactive = errors.New("capture source is not producing chunks")

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateSealing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateSealing:
		return "sealing"
	default:
		return "unknown"
	}
}

// ActivityReporter reports whether the capture device is producing.
type ActivityReporter interface {
	Active() bool
}

// Capture is the in-progress incident recording.
type Capture struct {
	ID        uint64
	PreRoll   []media.Chunk
	Live      []media.Chunk
	StartedAt time.Time
	Active    bool
}

// Recorder routes every produced chunk either to the rolling buffer or, while
// capturing, to the live accumulator, and seals captures into the gallery.
// It is owned by a single goroutine.
type Recorder struct {
	buffer   *media.RollingBuffer
	source   ActivityReporter
	gallery  *Gallery
	mimeType string

	state   State
	capture *Capture
	seq     uint64
}

// NewRecorder wires a recorder to its buffer, device and gallery.
func NewRecorder(buffer *media.RollingBuffer, source ActivityReporter, gallery *Gallery, mimeType string) *Recorder {
	return &Recorder{
		buffer:   buffer,
		source:   source,
		gallery:  gallery,
		mimeType: mimeType,
		state:    StateIdle,
	}
}

// State returns the current state.
func (r *Recorder) State() State { return r.state }

// Capturing reports whether a capture is in progress.
func (r *Recorder) Capturing() bool { return r.state == StateCapturing }

// CaptureID returns the id of the current capture, zero when idle.
func (r *Recorder) CaptureID() uint64 {
	if r.capture == nil {
		return 0
	}
	return r.capture.ID
}

// Capture returns the in-progress capture, nil when idle.
func (r *Recorder) Capture() *Capture { return r.capture }

// Elapsed returns how long the current capture has been running.
func (r *Recorder) Elapsed(now time.Time) time.Duration {
	if r.capture == nil {
		return 0
	}
	return now.Sub(r.capture.StartedAt)
}

// Accept routes a produced chunk. Each chunk goes to exactly one of the
// rolling buffer or the live accumulator.
func (r *Recorder) Accept(c media.Chunk, now time.Time) {
	if r.state == StateCapturing {
		r.capture.Live = append(r.capture.Live, c)
		return
	}
	r.buffer.Push(c, now)
}

// Start begins a capture seeded with the rolling buffer as pre-roll. It
// returns false without error when a capture is already running, and
// ErrSourceInactive when the device is not producing.
func (r *Recorder) Start(now time.Time) (bool, error) {
	if r.state == StateCapturing {
		return false, nil
	}
	if r.source == nil || !r.source.Active() {
		return false, ErrSourceInactive
	}

	r.seq++
	r.capture = &Capture{
		ID:        r.seq,
		PreRoll:   r.buffer.Snapshot(),
		Live:      nil,
		StartedAt: now,
		Active:    true,
	}
	r.state = StateCapturing
	log.Printf("Incident capture %d started with %d pre-roll chunks", r.seq, len(r.capture.PreRoll))
	return true, nil
}

// Stop seals the current capture into a gallery item. It is a no-op when no
// capture is running; a capture without any chunks is discarded.
func (r *Recorder) Stop(now time.Time, gforce *float64) (*Item, bool) {
	if r.state != StateCapturing {
		return nil, false
	}
	r.state = StateSealing
	c := r.capture
	c.Active = false
	defer func() {
		r.capture = nil
		r.state = StateIdle
	}()

	chunks := make([]media.Chunk, 0, len(c.PreRoll)+len(c.Live))
	chunks = append(chunks, c.PreRoll...)
	chunks = append(chunks, c.Live...)

	size := 0
	for _, ch := range chunks {
		size += ch.Size()
	}
	if size == 0 {
		log.Printf("Incident capture %d produced no data; nothing saved", c.ID)
		return nil, false
	}

	artifact := make([]byte, 0, size)
	for _, ch := range chunks {
		artifact = append(artifact, ch.Data...)
	}

	item := &Item{
		ID:         uuid.NewString(),
		Filename:   Filename(now, r.mimeType),
		MimeType:   r.mimeType,
		SizeBytes:  len(artifact),
		ChunkCount: len(chunks),
		StartedAt:  c.StartedAt,
		CreatedAt:  now,
		Gforce:     gforce,
		Artifact:   artifact,
	}
	r.gallery.Add(item)
	log.Printf("Incident capture %d sealed as %s (%d chunks, %.1f MB)",
		c.ID, item.Filename, item.ChunkCount, float64(item.SizeBytes)/1024/1024)

	return item, true
}

// Filename derives the clip file name from the seal time.
func Filename(at time.Time, mimeType string) string {
	stamp := at.UTC().Format("2006-01-02T15-04-05")
	return fmt.Sprintf("HelmetGuard_Incident_%s.%s", stamp, extension(mimeType))
}

func extension(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch base {
	case "video/mp4":
		return "mp4"
	case "video/x-matroska":
		return "mkv"
	default:
		return "webm"
	}
}
