package dispatch

import "time"

// Events receives acceptance and arrival signals for watched sessions.
// Signals may race a session reset; receivers drop stale session ids.
type Events interface {
	AcceptanceReceived(sessionID string)
	ArrivalProgress(sessionID string, remaining time.Duration)
	ArrivalDetected(sessionID string)
}

// Source produces acceptance and arrival events. The simulator stands in for
// the dispatch backend; the NATS source consumes the real thing. Swapping one
// for the other never touches the orchestrator's transition surface.
type Source interface {
	Bind(ev Events)
	// WatchAcceptance begins the acceptance wait for a confirmed booking.
	WatchAcceptance(sessionID string)
	// WatchArrival begins the worker travel countdown for an accepted booking.
	WatchArrival(sessionID string, eta time.Duration)
	// Stop tears down all watches for the session so late events cannot fire
	// into a reset session.
	Stop(sessionID string)
}
