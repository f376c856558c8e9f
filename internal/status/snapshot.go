// Package status turns helmet telemetry snapshots into status transitions.
//
// The reducer is pure: Next inspects a snapshot against the last observed
// status and returns the actions the caller must run. Commit records the
// transition once those actions have executed, so every action observes the
// previous status.
package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"helmetguard-client/internal/parse"
)

// Status is the discrete safety classification reported by the helmet.
type Status int

const (
	Unknown Status = iota
	Safe
	CrashDetected
	Emergency
)

func (s Status) String() string {
	switch s {
	case Safe:
		return "SAFE"
	case CrashDetected:
		return "CRASH_DETECTED"
	case Emergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status in its wire form.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Parse maps a raw wire status onto a Status. The firmware writes
// "CRASH DETECTED" with a space; both spellings are accepted.
func Parse(raw string) Status {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch norm {
	case "SAFE":
		return Safe
	case "CRASH_DETECTED":
		return CrashDetected
	case "EMERGENCY":
		return Emergency
	default:
		return Unknown
	}
}

// Snapshot is one telemetry update. Every field is optional; malformed
// values decode as absent.
type Snapshot struct {
	LiveGforce  *float64 `json:"live_gforce,omitempty"`
	Status      string   `json:"status,omitempty"`
	TimeMS      *int64   `json:"time_ms,omitempty"`
	CrashGforce *float64 `json:"crash_gforce,omitempty"`
	CrashTime   *int64   `json:"crash_time,omitempty"`
}

// HasStatus reports whether the snapshot carried a status.
func (s Snapshot) HasStatus() bool { return s.Status != "" }

// Gforce is the magnitude associated with the snapshot: the crash reading
// when present, otherwise the live one.
func (s Snapshot) Gforce() *float64 {
	if s.CrashGforce != nil {
		return s.CrashGforce
	}
	return s.LiveGforce
}

// Decode parses a JSON snapshot, tolerating wrong types per field.
func Decode(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return FromMap(raw), nil
}

// FromMap builds a snapshot from loosely typed fields.
func FromMap(raw map[string]any) Snapshot {
	var s Snapshot
	if v, ok := parse.Float(raw["live_gforce"]); ok {
		s.LiveGforce = &v
	}
	if v, ok := raw["status"].(string); ok {
		s.Status = strings.TrimSpace(v)
	}
	if v, ok := parse.Int(raw["time_ms"]); ok {
		s.TimeMS = &v
	}
	if v, ok := parse.Float(raw["crash_gforce"]); ok {
		s.CrashGforce = &v
	}
	if v, ok := parse.Int(raw["crash_time"]); ok {
		s.CrashTime = &v
	}
	return s
}
