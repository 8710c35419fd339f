package notify

import "time"

// Service delivers customer notifications. Fire-and-forget from the
// orchestrator's perspective: delivery failure is logged, never surfaced.
type Service interface {
	SendBookingConfirmed(toEmail, toName, sessionID string, totalAmount int64, scheduledAt time.Time) error
	SendArrivalOTP(toEmail, toName, code string) error
}
