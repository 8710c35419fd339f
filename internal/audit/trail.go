package audit

import (
	"context"
	"sync"
	"time"
)

// Cause distinguishes who or what drove a transition. Timeout cancellations
// must stay distinguishable from user cancellations in the trail.
type Cause string

const (
	CauseUser    Cause = "user"
	CauseSystem  Cause = "system"
	CauseTimeout Cause = "timeout"
)

// Entry is one stage change of one booking session.
type Entry struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	FromStage  string    `json:"from_stage"`
	ToStage    string    `json:"to_stage"`
	Event      string    `json:"event"`
	Cause      Cause     `json:"cause"`
	At         time.Time `json:"at"`
}

type Trail interface {
	Append(ctx context.Context, e Entry) error
	ListBySession(ctx context.Context, sessionID string) ([]Entry, error)
}

// MemoryTrail keeps the audit log in process memory. Tests and demo mode.
type MemoryTrail struct {
	mu      sync.Mutex
	nextID  int64
	entries []Entry
}

func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{nextID: 1}
}

func (t *MemoryTrail) Append(ctx context.Context, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.ID = t.nextID
	t.nextID++
	if e.At.IsZero() {
		e.At = time.Now()
	}
	t.entries = append(t.entries, e)
	return nil
}

func (t *MemoryTrail) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for _, e := range t.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}
