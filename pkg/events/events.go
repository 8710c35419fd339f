package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event types and subjects
const (
	// Booking lifecycle events
	BookingConfirmed = "booking.confirmed"
	BookingAccepted  = "booking.accepted"
	BookingCanceled  = "booking.canceled"
	BookingTimedOut  = "booking.timeout"
	BookingCompleted = "booking.completed"
	BookingRated     = "booking.rated"

	// Dispatch events (consumed when a real dispatch backend replaces the simulator)
	DispatchAccepted = "dispatch.accepted"
	WorkerArrived    = "worker.arrived"

	// Service execution events
	ServiceVerified = "service.verified"
	ServiceDone     = "service.done"

	// Payment events
	PaymentCaptured = "payment.captured"
	PaymentFailed   = "payment.failed"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type BookingConfirmedEvent struct {
	SessionID    string    `json:"session_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	WorkerID     string    `json:"worker_id"`
	SubServiceID string    `json:"sub_service_id"`
	TotalAmount  int64     `json:"total_amount"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Slot         string    `json:"slot"`
	CreatedAt    time.Time `json:"created_at"`
}

type BookingAcceptedEvent struct {
	SessionID  string    `json:"session_id"`
	WorkerID   string    `json:"worker_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type BookingCanceledEvent struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	CanceledAt time.Time `json:"canceled_at"`
}

type WorkerArrivedEvent struct {
	SessionID string    `json:"session_id"`
	WorkerID  string    `json:"worker_id"`
	ArrivedAt time.Time `json:"arrived_at"`
}

type ServiceVerifiedEvent struct {
	SessionID  string    `json:"session_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

type ServiceDoneEvent struct {
	SessionID string    `json:"session_id"`
	DoneAt    time.Time `json:"done_at"`
}

type PaymentCapturedEvent struct {
	SessionID string `json:"session_id"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type PaymentFailedEvent struct {
	SessionID string `json:"session_id"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

type BookingRatedEvent struct {
	SessionID     string    `json:"session_id"`
	WorkerID      string    `json:"worker_id"`
	WorkerStars   int       `json:"worker_stars"`
	PlatformStars int       `json:"platform_stars,omitempty"`
	RatedAt       time.Time `json:"rated_at"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
