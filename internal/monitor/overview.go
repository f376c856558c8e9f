package monitor

import (
	"time"

	"helmetguard-client/internal/alert"
	"helmetguard-client/internal/status"
)

// Overview is the read model served to the HTTP API. It is rebuilt by the
// controller after every event.
type Overview struct {
	Status     string           `json:"status"`
	Current    status.Status    `json:"current"`
	Updates    int              `json:"updates"`
	Incidents  int              `json:"incidents"`
	LiveGforce *float64         `json:"liveGforce"`
	Series     []float64        `json:"gforceSeries"`
	UptimeMS   int64            `json:"uptimeMs"`
	History    []status.Record  `json:"history"`
	Recording  RecordingState   `json:"recording"`
	Buffer     BufferState      `json:"buffer"`
	Dedup      alert.DedupState `json:"dedup"`
	LastAlert  *alert.Result    `json:"lastAlert"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// RecordingState describes the recorder.
type RecordingState struct {
	State     string `json:"state"`
	CaptureID uint64 `json:"captureId"`
	ElapsedMS int64  `json:"elapsedMs"`
	LiveCount int    `json:"liveChunks"`
	PreRoll   int    `json:"preRollChunks"`
}

// BufferState describes the rolling buffer.
type BufferState struct {
	Chunks       int   `json:"chunks"`
	DepthMS      int64 `json:"depthMs"`
	SourceActive bool  `json:"sourceActive"`
}

// Overview returns the latest read model.
func (s *Service) Overview() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overview
}

func (s *Service) publish(now time.Time) {
	ov := Overview{
		Status:     s.machine.LastStatus(),
		Current:    s.machine.Current(),
		Updates:    s.machine.Updates(),
		Incidents:  s.machine.Incidents(),
		LiveGforce: s.machine.LiveGforce(),
		Series:     s.machine.Series(),
		UptimeMS:   s.machine.Uptime().Milliseconds(),
		History:    s.machine.History(),
		Recording: RecordingState{
			State:     s.recorder.State().String(),
			CaptureID: s.recorder.CaptureID(),
			ElapsedMS: s.recorder.Elapsed(now).Milliseconds(),
		},
		Buffer: BufferState{
			Chunks:  s.buffer.Len(),
			DepthMS: s.buffer.Depth(now).Milliseconds(),
		},
		Dedup:     s.alerter.Dedup(),
		UpdatedAt: now,
	}
	if c := s.recorder.Capture(); c != nil {
		ov.Recording.LiveCount = len(c.Live)
		ov.Recording.PreRoll = len(c.PreRoll)
	}
	if s.source != nil {
		ov.Buffer.SourceActive = s.source.Active()
	}

	s.mu.Lock()
	ov.LastAlert = s.overview.LastAlert
	s.overview = ov
	s.mu.Unlock()
}

func (s *Service) recordAlertResult(r alert.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overview.LastAlert = &r
}
