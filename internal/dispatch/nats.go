package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kaamwale/kaamwale-bookings/pkg/events"
	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

// NATSSource consumes real dispatch events instead of simulating them.
// Acceptance and arrival are pushed by the dispatch backend on the bus;
// the source forwards only sessions it has been asked to watch.
type NATSSource struct {
	mu      sync.Mutex
	ev      Events
	watched map[string]bool
}

func NewNATSSource(sub events.Subscriber) (*NATSSource, error) {
	s := &NATSSource{watched: make(map[string]bool)}

	if err := sub.Subscribe(events.DispatchAccepted, s.onAccepted); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", events.DispatchAccepted, err)
	}
	if err := sub.Subscribe(events.WorkerArrived, s.onArrived); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", events.WorkerArrived, err)
	}

	return s, nil
}

func (s *NATSSource) Bind(ev Events) {
	s.mu.Lock()
	s.ev = ev
	s.mu.Unlock()
}

func (s *NATSSource) WatchAcceptance(sessionID string) {
	s.mu.Lock()
	s.watched[sessionID] = true
	s.mu.Unlock()
}

func (s *NATSSource) WatchArrival(sessionID string, eta time.Duration) {
	s.mu.Lock()
	s.watched[sessionID] = true
	s.mu.Unlock()
}

func (s *NATSSource) Stop(sessionID string) {
	s.mu.Lock()
	delete(s.watched, sessionID)
	s.mu.Unlock()
}

func (s *NATSSource) onAccepted(msg *events.Message) {
	var payload events.BookingAcceptedEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logger.Error("dispatch: malformed acceptance event", "error", err)
		return
	}
	if ev := s.eventsFor(payload.SessionID); ev != nil {
		ev.AcceptanceReceived(payload.SessionID)
	}
}

func (s *NATSSource) onArrived(msg *events.Message) {
	var payload events.WorkerArrivedEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logger.Error("dispatch: malformed arrival event", "error", err)
		return
	}
	if ev := s.eventsFor(payload.SessionID); ev != nil {
		ev.ArrivalDetected(payload.SessionID)
	}
}

func (s *NATSSource) eventsFor(sessionID string) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watched[sessionID] {
		return nil
	}
	return s.ev
}
