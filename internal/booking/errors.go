package booking

import "errors"

var (
	// ErrInvalidTransition means the event is not valid in the current stage.
	// A well-behaved client never triggers it: the snapshot lists allowed events.
	ErrInvalidTransition = errors.New("booking: event not valid in current stage")

	// ErrSessionActive rejects confirming a new booking while one is in flight.
	ErrSessionActive = errors.New("booking: a session is already active")

	// ErrWorkerUnavailable is the availability re-check failing at confirmation.
	ErrWorkerUnavailable = errors.New("booking: worker no longer available")

	// ErrAmountMismatch is a programming error: the charge request does not
	// carry the total fixed at confirmation.
	ErrAmountMismatch = errors.New("booking: payment amount does not match booking total")

	// ErrPaymentDeclined is retryable; the session stays in awaiting_payment.
	ErrPaymentDeclined = errors.New("booking: payment declined")

	// ErrOTPMismatch is retryable; the code stays valid.
	ErrOTPMismatch = errors.New("booking: incorrect verification code")

	// ErrOTPLocked means too many failed attempts; only cancel remains.
	ErrOTPLocked = errors.New("booking: verification locked after too many attempts")

	// ErrInvalidRating rejects stars outside 1..5.
	ErrInvalidRating = errors.New("booking: rating stars must be between 1 and 5")

	// ErrValidation covers malformed confirmation input (past date, empty
	// address, unrecognized payment method).
	ErrValidation = errors.New("booking: invalid booking request")

	// ErrAcceptanceTimeout discards the session when no worker accepts in
	// time. Distinct from a user cancel in events and audit.
	ErrAcceptanceTimeout = errors.New("booking: no worker accepted in time")
)
