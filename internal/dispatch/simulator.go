package dispatch

import (
	"sync"
	"time"

	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

// Simulator fakes the dispatch backend with timers: every booking is accepted
// after a fixed delay, and the worker's ETA counts down to an arrival event.
type Simulator struct {
	acceptAfter time.Duration
	tick        time.Duration

	mu      sync.Mutex
	ev      Events
	watches map[string]*simWatch
}

type simWatch struct {
	acceptTimer *time.Timer
	arrivalDone chan struct{}
}

func NewSimulator(acceptAfter, tick time.Duration) *Simulator {
	return &Simulator{
		acceptAfter: acceptAfter,
		tick:        tick,
		watches:     make(map[string]*simWatch),
	}
}

func (s *Simulator) Bind(ev Events) {
	s.mu.Lock()
	s.ev = ev
	s.mu.Unlock()
}

func (s *Simulator) WatchAcceptance(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.watch(sessionID)
	w.acceptTimer = time.AfterFunc(s.acceptAfter, func() {
		if ev := s.eventsFor(sessionID); ev != nil {
			ev.AcceptanceReceived(sessionID)
		}
	})
}

func (s *Simulator) WatchArrival(sessionID string, eta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.watch(sessionID)
	done := make(chan struct{})
	w.arrivalDone = done

	go s.countdown(sessionID, eta, done)
}

func (s *Simulator) countdown(sessionID string, remaining time.Duration, done chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			remaining -= s.tick
			ev := s.eventsFor(sessionID)
			if ev == nil {
				return
			}
			if remaining <= 0 {
				ev.ArrivalDetected(sessionID)
				s.Stop(sessionID)
				return
			}
			ev.ArrivalProgress(sessionID, remaining)
		}
	}
}

func (s *Simulator) Stop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.watches[sessionID]
	if !ok {
		return
	}
	if w.acceptTimer != nil {
		w.acceptTimer.Stop()
	}
	if w.arrivalDone != nil {
		close(w.arrivalDone)
		w.arrivalDone = nil
	}
	delete(s.watches, sessionID)
	logger.Debug("dispatch simulator: watches torn down", "session_id", sessionID)
}

// watch returns the entry for sessionID, creating it if needed. Caller holds mu.
func (s *Simulator) watch(sessionID string) *simWatch {
	w, ok := s.watches[sessionID]
	if !ok {
		w = &simWatch{}
		s.watches[sessionID] = w
	}
	return w
}

// eventsFor answers the bound handler only while the session is still watched,
// so stopped watches cannot deliver. Callbacks run outside the lock.
func (s *Simulator) eventsFor(sessionID string) Events {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watches[sessionID]; !ok {
		return nil
	}
	return s.ev
}
