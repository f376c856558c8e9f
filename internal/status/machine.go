package status

import (
	"time"

	"helmetguard-client/internal/bounded"
)

const seriesLength = 40

// Action is a side effect requested by a transition.
type Action int

const (
	ActionStartRecording Action = iota + 1
	ActionTriggerAlert
	ActionResetDedup
)

func (a Action) String() string {
	switch a {
	case ActionStartRecording:
		return "start-recording"
	case ActionTriggerAlert:
		return "trigger-alert"
	case ActionResetDedup:
		return "reset-dedup"
	default:
		return "none"
	}
}

// Record is one entry of the status history.
type Record struct {
	Status     Status    `json:"status"`
	Raw        string    `json:"raw"`
	ObservedAt time.Time `json:"observedAt"`
	Gforce     *float64  `json:"gforce"`
}

// Transition is the outcome of feeding one snapshot to the machine.
type Transition struct {
	Changed  bool
	Previous string
	Record   Record
	Actions  []Action
}

// Machine tracks the last observed status and the display history.
type Machine struct {
	lastStatus string
	history    *bounded.List[Record]
	incidents  int

	updates    int
	liveGforce *float64
	series     []float64
	uptime     time.Duration
}

// NewMachine creates a machine keeping historySize records.
func NewMachine(historySize int) *Machine {
	return &Machine{history: bounded.New[Record](historySize, nil)}
}

// Observe updates the display counters. It runs for every snapshot,
// including those that repeat the current status.
func (m *Machine) Observe(s Snapshot) {
	m.updates++
	if s.LiveGforce != nil {
		v := *s.LiveGforce
		m.liveGforce = &v
		m.series = append(m.series, v)
		if len(m.series) > seriesLength {
			m.series = m.series[len(m.series)-seriesLength:]
		}
	}
	if s.TimeMS != nil {
		m.uptime = time.Duration(*s.TimeMS) * time.Millisecond
	}
}

// Next computes the transition for s without mutating the machine.
func (m *Machine) Next(s Snapshot, now time.Time) Transition {
	if !s.HasStatus() || s.Status == m.lastStatus {
		return Transition{Previous: m.lastStatus}
	}

	st := Parse(s.Status)
	t := Transition{
		Changed:  true,
		Previous: m.lastStatus,
		Record: Record{
			Status:     st,
			Raw:        s.Status,
			ObservedAt: now,
			Gforce:     s.Gforce(),
		},
	}
	switch st {
	case CrashDetected:
		t.Actions = []Action{ActionStartRecording}
	case Emergency:
		t.Actions = []Action{ActionTriggerAlert, ActionStartRecording}
	case Safe:
		t.Actions = []Action{ActionResetDedup}
	}
	return t
}

// Commit records t. It must run after t's actions.
func (m *Machine) Commit(t Transition) {
	if !t.Changed {
		return
	}
	m.history.PushFront(t.Record)
	if t.Record.Status == Emergency {
		m.incidents++
	}
	m.lastStatus = t.Record.Raw
}

// LastStatus returns the last committed raw status, empty before the first.
func (m *Machine) LastStatus() string { return m.lastStatus }

// Current returns the parsed last status.
func (m *Machine) Current() Status { return Parse(m.lastStatus) }

// History returns the status records, newest first.
func (m *Machine) History() []Record { return m.history.Items() }

// Incidents returns the number of EMERGENCY transitions seen.
func (m *Machine) Incidents() int { return m.incidents }

// Updates returns the number of snapshots observed.
func (m *Machine) Updates() int { return m.updates }

// LiveGforce returns the last live reading, nil before the first.
func (m *Machine) LiveGforce() *float64 { return m.liveGforce }

// Series returns recent live readings, oldest first.
func (m *Machine) Series() []float64 {
	out := make([]float64, len(m.series))
	copy(out, m.series)
	return out
}

// Uptime is the helmet uptime reported in the last snapshot.
func (m *Machine) Uptime() time.Duration { return m.uptime }
