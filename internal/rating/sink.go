package rating

import (
	"context"
	"sync"
	"time"
)

// Record is one customer verdict on a finished booking. PlatformStars zero
// means the customer skipped rating the platform.
type Record struct {
	SessionID      string    `json:"session_id"`
	CustomerID     string    `json:"customer_id"`
	WorkerID       string    `json:"worker_id"`
	WorkerStars    int       `json:"worker_stars"`
	WorkerFeedback string    `json:"worker_feedback,omitempty"`
	PlatformStars  int       `json:"platform_stars,omitempty"`
	RatedAt        time.Time `json:"rated_at"`
}

// Sink records ratings. Failure to record never blocks the booking from
// completing; ratings are best-effort telemetry.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// MemorySink collects ratings in process memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Record(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemorySink) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
