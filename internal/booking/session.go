package booking

import (
	"time"

	"github.com/kaamwale/kaamwale-bookings/internal/catalog"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentUPI    PaymentMethod = "upi"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCash, PaymentUPI, PaymentCard, PaymentWallet:
		return PaymentMethod(s), true
	default:
		return "", false
	}
}

// PlatformFee is the fixed surcharge added to a worker's quoted price,
// in minor currency units.
const PlatformFee int64 = 20

// Schedule carries the customer-entered booking details. Immutable after
// acceptance.
type Schedule struct {
	Date          time.Time `json:"date"`
	Slot          string    `json:"slot"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Address       string    `json:"address"`
}

// Rating is written only in the awaiting-rating stage. PlatformStars zero
// means the customer skipped the platform rating.
type Rating struct {
	WorkerStars    int    `json:"worker_stars"`
	WorkerFeedback string `json:"worker_feedback,omitempty"`
	PlatformStars  int    `json:"platform_stars,omitempty"`
}

// Session is the mutable aggregate for one active booking. It is created on
// confirmation and owned exclusively by one Orchestrator; all mutation happens
// under the orchestrator's lock.
type Session struct {
	ID            string
	CustomerID    string
	Stage         Stage
	Category      catalog.ServiceCategory
	SubService    catalog.SubService
	Worker        catalog.Worker
	Schedule      Schedule
	PaymentMethod PaymentMethod
	TotalAmount   int64
	Rating        *Rating
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionView is the read-only copy handed to callers.
type SessionView struct {
	ID            string          `json:"id"`
	Stage         Stage           `json:"stage"`
	Category      string          `json:"category"`
	SubService    string          `json:"sub_service"`
	Worker        catalog.Worker  `json:"worker"`
	Schedule      Schedule        `json:"schedule"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalAmount   int64           `json:"total_amount"`
	ETASeconds    int             `json:"eta_seconds,omitempty"`
	Rating        *Rating         `json:"rating,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Failure describes a terminal session failure that stays inspectable until
// the customer starts over or cancels.
type Failure struct {
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Snapshot is the UI surface: current stage, whatever reference data the stage
// needs, and the events valid from here.
type Snapshot struct {
	Stage       Stage                    `json:"stage"`
	Category    *catalog.ServiceCategory `json:"category,omitempty"`
	SubServices []catalog.SubService     `json:"sub_services,omitempty"`
	SubService  *catalog.SubService      `json:"sub_service,omitempty"`
	Workers     []catalog.Worker         `json:"workers,omitempty"`
	Worker      *catalog.Worker          `json:"worker,omitempty"`
	Session     *SessionView             `json:"session,omitempty"`
	LastFailure *Failure                 `json:"last_failure,omitempty"`
	Allowed     []EventKind              `json:"allowed_events"`
}
