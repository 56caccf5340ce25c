package dispatch

import (
	"sync"
	"time"

	"matatu-feedback/notify"
)

// DefaultTrailSize is the number of attempts kept in memory
const DefaultTrailSize = 1000

// Attempt is one send attempt recorded in the audit trail
type Attempt struct {
	ReportID    string             `json:"reportId"`
	Recipient   string             `json:"recipient"`
	Kind        notify.MessageKind `json:"kind"`
	Channel     notify.Channel     `json:"channel"`
	Success     bool               `json:"success"`
	FailureKind notify.FailureKind `json:"failureKind,omitempty"`
	TransportID string             `json:"transportId,omitempty"`
	Error       string             `json:"error,omitempty"`
	Fallback    bool               `json:"fallback"`
	At          time.Time          `json:"at"`
}

// Trail keeps the most recent attempts in insertion order
type Trail struct {
	mu       sync.RWMutex
	attempts []Attempt
	next     int
	full     bool
}

// NewTrail creates a trail bounded to size attempts
func NewTrail(size int) *Trail {
	if size <= 0 {
		size = DefaultTrailSize
	}
	return &Trail{attempts: make([]Attempt, size)}
}

// Record appends an attempt, evicting the oldest when full
func (t *Trail) Record(a Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts[t.next] = a
	t.next = (t.next + 1) % len(t.attempts)
	if t.next == 0 {
		t.full = true
	}
}

// All returns the retained attempts, oldest first
func (t *Trail) All() []Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot()
}

// ForReport returns the retained attempts for one report, oldest first
func (t *Trail) ForReport(reportID string) []Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Attempt
	for _, a := range t.snapshot() {
		if a.ReportID == reportID {
			out = append(out, a)
		}
	}
	return out
}

func (t *Trail) snapshot() []Attempt {
	if !t.full {
		return append([]Attempt(nil), t.attempts[:t.next]...)
	}
	out := make([]Attempt, 0, len(t.attempts))
	out = append(out, t.attempts[t.next:]...)
	return append(out, t.attempts[:t.next]...)
}
