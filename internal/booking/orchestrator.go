package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaamwale/kaamwale-bookings/internal/audit"
	"github.com/kaamwale/kaamwale-bookings/internal/catalog"
	"github.com/kaamwale/kaamwale-bookings/internal/dispatch"
	"github.com/kaamwale/kaamwale-bookings/internal/notify"
	"github.com/kaamwale/kaamwale-bookings/internal/otp"
	"github.com/kaamwale/kaamwale-bookings/internal/payment"
	"github.com/kaamwale/kaamwale-bookings/internal/rating"
	"github.com/kaamwale/kaamwale-bookings/pkg/events"
	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

// OTPService is the slice of the otp package the orchestrator depends on.
type OTPService interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Verify(ctx context.Context, sessionID, code string) error
}

// Update is pushed to the subscribed UI layer whenever the stage may have
// changed asynchronously (timer or dispatch event) or a retryable failure
// surfaced. One code path: re-render from the snapshot.
type Update struct {
	Event    EventKind
	Snapshot Snapshot
	Err      error
}

type Config struct {
	AcceptanceTimeout time.Duration
	InitialETA        time.Duration
	CompletedLinger   time.Duration
}

type Deps struct {
	Directory catalog.Directory
	Source    dispatch.Source
	OTP       OTPService
	Payments  payment.Processor
	Ratings   rating.Sink
	Notifier  notify.Service   // optional
	Bus       events.Publisher // optional
	Trail     audit.Trail      // optional
}

// Orchestrator owns one customer's booking lifecycle. All transitions are
// serialized under one lock: user intents, dispatch events and timers apply
// one at a time, and events for a discarded session are dropped silently.
type Orchestrator struct {
	customerID string
	deps       Deps
	cfg        Config

	mu          sync.Mutex
	stage       Stage
	category    *catalog.ServiceCategory
	subServices []catalog.SubService
	subService  *catalog.SubService
	workers     []catalog.Worker
	worker      *catalog.Worker
	session     *Session
	etaLeft     time.Duration
	lastFailure *Failure

	acceptTimer   *time.Timer
	completeTimer *time.Timer
	onUpdate      func(Update)
}

func NewOrchestrator(customerID string, deps Deps, cfg Config) *Orchestrator {
	if cfg.AcceptanceTimeout <= 0 {
		cfg.AcceptanceTimeout = 2 * time.Minute
	}
	if cfg.InitialETA <= 0 {
		cfg.InitialETA = 90 * time.Second
	}
	if cfg.CompletedLinger <= 0 {
		cfg.CompletedLinger = 5 * time.Second
	}

	o := &Orchestrator{
		customerID: customerID,
		deps:       deps,
		cfg:        cfg,
		stage:      StageIdle,
	}
	if deps.Source != nil {
		deps.Source.Bind(o)
	}
	return o
}

// OnUpdate registers the UI-layer subscriber for asynchronous stage changes.
func (o *Orchestrator) OnUpdate(fn func(Update)) {
	o.mu.Lock()
	o.onUpdate = fn
	o.mu.Unlock()
}

func (o *Orchestrator) CustomerID() string { return o.customerID }

// Snapshot returns the current stage, its payload and the events valid now.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SelectCategory loads the category's sub-services and enters browsing.
func (o *Orchestrator) SelectCategory(ctx context.Context, categoryID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSelectCategory)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSelectCategory)
	}

	cat, err := o.deps.Directory.GetCategory(ctx, categoryID)
	if err != nil {
		return Snapshot{}, err
	}
	subs, err := o.deps.Directory.ListSubServices(ctx, categoryID)
	if err != nil {
		return Snapshot{}, err
	}

	from := o.stage
	o.category = cat
	o.subServices = subs
	o.stage = next
	o.lastFailure = nil

	o.auditLocked(ctx, from, next, EventSelectCategory, audit.CauseUser)
	return o.snapshotLocked(), nil
}

// SelectSubService fetches the candidate worker list for the sub-service.
func (o *Orchestrator) SelectSubService(ctx context.Context, subServiceID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSelectSubService)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSelectSubService)
	}

	var chosen *catalog.SubService
	for i := range o.subServices {
		if o.subServices[i].ID == subServiceID {
			chosen = &o.subServices[i]
			break
		}
	}
	if chosen == nil {
		return Snapshot{}, catalog.ErrNotFound
	}

	workers, err := o.deps.Directory.ListWorkers(ctx, subServiceID)
	if err != nil {
		return Snapshot{}, err
	}

	from := o.stage
	sub := *chosen
	o.subService = &sub
	o.workers = workers
	o.stage = next

	o.auditLocked(ctx, from, next, EventSelectSubService, audit.CauseUser)
	return o.snapshotLocked(), nil
}

// SelectWorker picks one candidate from the fetched list.
func (o *Orchestrator) SelectWorker(ctx context.Context, workerID string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSelectWorker)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSelectWorker)
	}

	var chosen *catalog.Worker
	for i := range o.workers {
		if o.workers[i].ID == workerID {
			chosen = &o.workers[i]
			break
		}
	}
	if chosen == nil {
		return Snapshot{}, catalog.ErrNotFound
	}

	from := o.stage
	w := *chosen
	o.worker = &w
	o.stage = next

	o.auditLocked(ctx, from, next, EventSelectWorker, audit.CauseUser)
	return o.snapshotLocked(), nil
}

// ConfirmRequest carries the customer-entered details for ConfirmBooking.
type ConfirmRequest struct {
	Date          time.Time
	Slot          string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Address       string
	PaymentMethod string
}

func (r *ConfirmRequest) validate() (PaymentMethod, error) {
	return r.validateAt(time.Now())
}

func (r *ConfirmRequest) validateAt(now time.Time) (PaymentMethod, error) {
	if r.Address == "" {
		return "", fmt.Errorf("%w: address required", ErrValidation)
	}
	if r.CustomerName == "" {
		return "", fmt.Errorf("%w: customer name required", ErrValidation)
	}
	if r.CustomerPhone == "" {
		return "", fmt.Errorf("%w: customer phone required", ErrValidation)
	}
	if r.Slot == "" {
		return "", fmt.Errorf("%w: time slot required", ErrValidation)
	}
	// "today" is midnight in the booking date's own zone, not UTC midnight.
	y, m, d := now.In(r.Date.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, r.Date.Location())
	if r.Date.Before(today) {
		return "", fmt.Errorf("%w: date must be today or later", ErrValidation)
	}
	method, ok := ParsePaymentMethod(r.PaymentMethod)
	if !ok {
		return "", fmt.Errorf("%w: unrecognized payment method %q", ErrValidation, r.PaymentMethod)
	}
	return method, nil
}

// ConfirmBooking creates the session, fixes the total and starts the
// acceptance wait. TotalAmount never changes after this point.
func (o *Orchestrator) ConfirmBooking(ctx context.Context, req ConfirmRequest) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil && o.stage != StageIdle && o.stage != StageCompleted {
		return Snapshot{}, ErrSessionActive
	}

	next, ok := NextStage(o.stage, EventConfirmBooking)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventConfirmBooking)
	}

	method, err := req.validate()
	if err != nil {
		return Snapshot{}, err
	}

	available, err := o.deps.Directory.IsWorkerAvailable(ctx, o.worker.ID)
	if err != nil || !available {
		return Snapshot{}, ErrWorkerUnavailable
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		CustomerID: o.customerID,
		Stage:      next,
		Category:   *o.category,
		SubService: *o.subService,
		Worker:     *o.worker,
		Schedule: Schedule{
			Date:          req.Date,
			Slot:          req.Slot,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			CustomerEmail: req.CustomerEmail,
			Address:       req.Address,
		},
		PaymentMethod: method,
		TotalAmount:   o.worker.Price + PlatformFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	from := o.stage
	o.session = sess
	o.stage = next

	sessionID := sess.ID
	o.acceptTimer = time.AfterFunc(o.cfg.AcceptanceTimeout, func() {
		o.acceptanceTimedOut(sessionID)
	})
	if o.deps.Source != nil {
		o.deps.Source.WatchAcceptance(sessionID)
	}

	o.auditLocked(ctx, from, next, EventConfirmBooking, audit.CauseUser)
	o.publishLocked(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
		SessionID:    sess.ID,
		CustomerID:   sess.CustomerID,
		CustomerName: sess.Schedule.CustomerName,
		WorkerID:     sess.Worker.ID,
		SubServiceID: sess.SubService.ID,
		TotalAmount:  sess.TotalAmount,
		ScheduledAt:  sess.Schedule.Date,
		Slot:         sess.Schedule.Slot,
		CreatedAt:    sess.CreatedAt,
	})

	if o.deps.Notifier != nil && sess.Schedule.CustomerEmail != "" {
		email, name, id, total, date := sess.Schedule.CustomerEmail, sess.Schedule.CustomerName, sess.ID, sess.TotalAmount, sess.Schedule.Date
		go func() {
			if err := o.deps.Notifier.SendBookingConfirmed(email, name, id, total, date); err != nil {
				logger.Error("Failed to send booking confirmation", "error", err, "session_id", id)
			}
		}()
	}

	return o.snapshotLocked(), nil
}

// AcceptanceReceived is the dispatch callback: a worker took the booking.
func (o *Orchestrator) AcceptanceReceived(sessionID string) {
	ctx := context.Background()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ownsLocked(sessionID) {
		return
	}
	next, ok := NextStage(o.stage, EventAcceptanceReceived)
	if !ok {
		logger.Debug("Dropping acceptance in wrong stage", "session_id", sessionID, "stage", string(o.stage))
		return
	}

	if o.acceptTimer != nil {
		o.acceptTimer.Stop()
		o.acceptTimer = nil
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()

	o.auditLocked(ctx, from, next, EventAcceptanceReceived, audit.CauseSystem)
	o.publishLocked(ctx, events.BookingAccepted, events.BookingAcceptedEvent{
		SessionID:  sessionID,
		WorkerID:   o.session.Worker.ID,
		AcceptedAt: o.session.UpdatedAt,
	})
	o.emitLocked(Update{Event: EventAcceptanceReceived, Snapshot: o.snapshotLocked()})
}

// ChangePaymentMethod mutates the method without stage progression. Only the
// accepted stage permits it; afterwards the method travels with SubmitPayment.
func (o *Orchestrator) ChangePaymentMethod(ctx context.Context, method string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventChangePaymentMethod)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventChangePaymentMethod)
	}
	m, ok := ParsePaymentMethod(method)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: unrecognized payment method %q", ErrValidation, method)
	}

	o.session.PaymentMethod = m
	o.session.UpdatedAt = time.Now()
	o.stage = next // self-loop

	o.auditLocked(ctx, next, next, EventChangePaymentMethod, audit.CauseUser)
	return o.snapshotLocked(), nil
}

// ContinueToTracking starts the worker travel countdown.
func (o *Orchestrator) ContinueToTracking(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventContinueToTracking)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventContinueToTracking)
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()
	o.etaLeft = o.cfg.InitialETA

	if o.deps.Source != nil {
		o.deps.Source.WatchArrival(o.session.ID, o.etaLeft)
	}

	o.auditLocked(ctx, from, next, EventContinueToTracking, audit.CauseUser)
	return o.snapshotLocked(), nil
}

// ArrivalProgress is the dispatch callback for ETA updates while tracking.
func (o *Orchestrator) ArrivalProgress(sessionID string, remaining time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ownsLocked(sessionID) || o.stage != StageTracking {
		return
	}
	o.etaLeft = remaining
	o.emitLocked(Update{Event: EventETAProgress, Snapshot: o.snapshotLocked()})
}

// ArrivalDetected is the dispatch callback: the worker is on site. Entering
// verification issues the single-use OTP.
func (o *Orchestrator) ArrivalDetected(sessionID string) {
	ctx := context.Background()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ownsLocked(sessionID) {
		return
	}
	next, ok := NextStage(o.stage, EventArrivalDetected)
	if !ok {
		logger.Debug("Dropping arrival in wrong stage", "session_id", sessionID, "stage", string(o.stage))
		return
	}

	code, err := o.deps.OTP.Issue(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to issue OTP, staying in tracking", "error", err, "session_id", sessionID)
		o.emitLocked(Update{Event: EventArrivalDetected, Snapshot: o.snapshotLocked(), Err: err})
		return
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()
	o.etaLeft = 0

	o.auditLocked(ctx, from, next, EventArrivalDetected, audit.CauseSystem)
	o.publishLocked(ctx, events.WorkerArrived, events.WorkerArrivedEvent{
		SessionID: sessionID,
		WorkerID:  o.session.Worker.ID,
		ArrivedAt: o.session.UpdatedAt,
	})

	if o.deps.Notifier != nil && o.session.Schedule.CustomerEmail != "" {
		email, name := o.session.Schedule.CustomerEmail, o.session.Schedule.CustomerName
		go func() {
			if err := o.deps.Notifier.SendArrivalOTP(email, name, code); err != nil {
				logger.Error("Failed to send arrival OTP", "error", err, "session_id", sessionID)
			}
		}()
	}

	o.emitLocked(Update{Event: EventArrivalDetected, Snapshot: o.snapshotLocked()})
}

// SubmitOTP verifies the on-site code. Mismatch keeps the code valid and the
// stage unchanged; success consumes the code.
func (o *Orchestrator) SubmitOTP(ctx context.Context, code string) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSubmitOTP)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSubmitOTP)
	}

	if err := o.deps.OTP.Verify(ctx, o.session.ID, code); err != nil {
		switch {
		case errors.Is(err, otp.ErrMismatch):
			return o.snapshotLocked(), ErrOTPMismatch
		case errors.Is(err, otp.ErrLocked):
			return o.snapshotLocked(), ErrOTPLocked
		default:
			return Snapshot{}, fmt.Errorf("otp verification failed: %w", err)
		}
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()

	o.auditLocked(ctx, from, next, EventSubmitOTP, audit.CauseUser)
	o.publishLocked(ctx, events.ServiceVerified, events.ServiceVerifiedEvent{
		SessionID:  o.session.ID,
		VerifiedAt: o.session.UpdatedAt,
	})
	return o.snapshotLocked(), nil
}

// ResendOTP issues a fresh on-site code for the live session. The new code
// replaces the old one and the attempt counter starts over, so a customer
// who lost the code (or locked themselves out) can recover in place.
func (o *Orchestrator) ResendOTP(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stage != StageAwaitingVerification {
		return Snapshot{}, o.rejectLocked(ctx, EventResendOTP)
	}

	code, err := o.deps.OTP.Issue(ctx, o.session.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("otp reissue failed: %w", err)
	}
	o.session.UpdatedAt = time.Now()

	o.auditLocked(ctx, o.stage, o.stage, EventResendOTP, audit.CauseUser)

	if o.deps.Notifier != nil && o.session.Schedule.CustomerEmail != "" {
		email, name, id := o.session.Schedule.CustomerEmail, o.session.Schedule.CustomerName, o.session.ID
		go func() {
			if err := o.deps.Notifier.SendArrivalOTP(email, name, code); err != nil {
				logger.Error("Failed to resend arrival OTP", "error", err, "session_id", id)
			}
		}()
	}

	return o.snapshotLocked(), nil
}

// MarkServiceComplete moves the finished job to payment.
func (o *Orchestrator) MarkServiceComplete(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventMarkServiceComplete)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventMarkServiceComplete)
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()

	o.auditLocked(ctx, from, next, EventMarkServiceComplete, audit.CauseUser)
	o.publishLocked(ctx, events.ServiceDone, events.ServiceDoneEvent{
		SessionID: o.session.ID,
		DoneAt:    o.session.UpdatedAt,
	})
	return o.snapshotLocked(), nil
}

// SubmitPayment charges the fixed booking total. A mismatched amount is a
// programming error, not a decline; a decline keeps the stage for retry.
func (o *Orchestrator) SubmitPayment(ctx context.Context, method string, amount int64) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSubmitPayment)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSubmitPayment)
	}

	m := o.session.PaymentMethod
	if method != "" {
		parsed, ok := ParsePaymentMethod(method)
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: unrecognized payment method %q", ErrValidation, method)
		}
		m = parsed
	}

	if amount != o.session.TotalAmount {
		return Snapshot{}, fmt.Errorf("%w: got %d, booking total is %d", ErrAmountMismatch, amount, o.session.TotalAmount)
	}

	receipt, err := o.deps.Payments.Charge(ctx, o.session.ID, string(m), amount)
	if err != nil {
		if errors.Is(err, payment.ErrDeclined) {
			o.publishLocked(ctx, events.PaymentFailed, events.PaymentFailedEvent{
				SessionID: o.session.ID,
				Method:    string(m),
				Amount:    amount,
				Reason:    err.Error(),
			})
			snap := o.snapshotLocked()
			o.emitLocked(Update{Event: EventSubmitPayment, Snapshot: snap, Err: ErrPaymentDeclined})
			return snap, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
		return Snapshot{}, fmt.Errorf("payment failed: %w", err)
	}

	from := o.stage
	o.session.PaymentMethod = m
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = time.Now()

	o.auditLocked(ctx, from, next, EventSubmitPayment, audit.CauseUser)
	o.publishLocked(ctx, events.PaymentCaptured, events.PaymentCapturedEvent{
		SessionID: o.session.ID,
		Method:    string(m),
		Amount:    amount,
		Reference: receipt.Reference,
	})
	return o.snapshotLocked(), nil
}

// SubmitRating records the verdict and completes the booking. Recording is
// best-effort: a failing sink never blocks completion.
func (o *Orchestrator) SubmitRating(ctx context.Context, workerStars int, feedback string, platformStars int) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, ok := NextStage(o.stage, EventSubmitRating)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventSubmitRating)
	}
	if workerStars < 1 || workerStars > 5 {
		return Snapshot{}, ErrInvalidRating
	}
	if platformStars != 0 && (platformStars < 1 || platformStars > 5) {
		return Snapshot{}, ErrInvalidRating
	}

	now := time.Now()
	o.session.Rating = &Rating{
		WorkerStars:    workerStars,
		WorkerFeedback: feedback,
		PlatformStars:  platformStars,
	}

	if o.deps.Ratings != nil {
		rec := rating.Record{
			SessionID:      o.session.ID,
			CustomerID:     o.customerID,
			WorkerID:       o.session.Worker.ID,
			WorkerStars:    workerStars,
			WorkerFeedback: feedback,
			PlatformStars:  platformStars,
			RatedAt:        now,
		}
		if err := o.deps.Ratings.Record(ctx, rec); err != nil {
			logger.WarnContext(ctx, "Failed to record rating, completing anyway", "error", err, "session_id", o.session.ID)
		}
	}

	from := o.stage
	o.stage = next
	o.session.Stage = next
	o.session.UpdatedAt = now

	sessionID := o.session.ID
	o.completeTimer = time.AfterFunc(o.cfg.CompletedLinger, func() {
		o.completedReset(sessionID)
	})

	o.auditLocked(ctx, from, next, EventSubmitRating, audit.CauseUser)
	o.publishLocked(ctx, events.BookingRated, events.BookingRatedEvent{
		SessionID:     sessionID,
		WorkerID:      o.session.Worker.ID,
		WorkerStars:   workerStars,
		PlatformStars: platformStars,
		RatedAt:       now,
	})
	return o.snapshotLocked(), nil
}

// Cancel discards the session (or browse selections) and returns to idle.
// Valid in every stage up to and including awaiting_payment; in idle it is a
// no-op that acknowledges any lingering failure, and in completed it skips
// the display linger so the next booking can start immediately.
func (o *Orchestrator) Cancel(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stage == StageIdle {
		o.lastFailure = nil
		return o.snapshotLocked(), nil
	}
	if o.stage == StageCompleted {
		o.lastFailure = nil
		o.auditLocked(ctx, StageCompleted, StageIdle, EventCancel, audit.CauseUser)
		o.resetLocked()
		return o.snapshotLocked(), nil
	}

	next, ok := NextStage(o.stage, EventCancel)
	if !ok {
		return Snapshot{}, o.rejectLocked(ctx, EventCancel)
	}

	from := o.stage
	sess := o.session
	o.auditLocked(ctx, from, next, EventCancel, audit.CauseUser)
	o.resetLocked()

	if sess != nil {
		o.publishLocked(ctx, events.BookingCanceled, events.BookingCanceledEvent{
			SessionID:  sess.ID,
			CustomerID: sess.CustomerID,
			Stage:      string(from),
			Reason:     "user_requested",
			CanceledAt: time.Now(),
		})
	}
	return o.snapshotLocked(), nil
}

// acceptanceTimedOut fires when no worker accepted within the bound. The
// session is discarded but stays inspectable via LastFailure.
func (o *Orchestrator) acceptanceTimedOut(sessionID string) {
	ctx := context.Background()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ownsLocked(sessionID) || o.stage != StageAwaitingAcceptance {
		return
	}

	from := o.stage
	sess := o.session
	o.resetLocked()
	o.lastFailure = &Failure{
		SessionID: sessionID,
		Reason:    "acceptance_timeout",
		At:        time.Now(),
	}

	o.auditLocked(ctx, from, StageIdle, EventCancel, audit.CauseTimeout)
	o.publishLocked(ctx, events.BookingTimedOut, events.BookingCanceledEvent{
		SessionID:  sess.ID,
		CustomerID: sess.CustomerID,
		Stage:      string(from),
		Reason:     "acceptance_timeout",
		CanceledAt: time.Now(),
	})
	o.emitLocked(Update{Event: EventCancel, Snapshot: o.snapshotLocked(), Err: ErrAcceptanceTimeout})
}

// completedReset clears the finished booking after its display linger.
func (o *Orchestrator) completedReset(sessionID string) {
	ctx := context.Background()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ownsLocked(sessionID) || o.stage != StageCompleted {
		return
	}

	from := o.stage
	o.auditLocked(ctx, from, StageIdle, EventCancel, audit.CauseSystem)
	o.resetLocked()

	o.emitLocked(Update{Event: EventCancel, Snapshot: o.snapshotLocked()})
}

// ownsLocked reports whether sessionID names the live session. Events for a
// discarded session are expected races and dropped without error.
func (o *Orchestrator) ownsLocked(sessionID string) bool {
	if o.session == nil || o.session.ID != sessionID {
		logger.Debug("Dropping event for stale session", "session_id", sessionID)
		return false
	}
	return true
}

// resetLocked tears down timers and watches and clears every session field so
// nothing leaks into the next booking.
func (o *Orchestrator) resetLocked() {
	if o.acceptTimer != nil {
		o.acceptTimer.Stop()
		o.acceptTimer = nil
	}
	if o.completeTimer != nil {
		o.completeTimer.Stop()
		o.completeTimer = nil
	}
	if o.session != nil && o.deps.Source != nil {
		o.deps.Source.Stop(o.session.ID)
	}
	o.stage = StageIdle
	o.category = nil
	o.subServices = nil
	o.subService = nil
	o.workers = nil
	o.worker = nil
	o.session = nil
	o.etaLeft = 0
}

func (o *Orchestrator) rejectLocked(ctx context.Context, ev EventKind) error {
	logger.WarnContext(ctx, "Rejected transition",
		"customer_id", o.customerID,
		"stage", string(o.stage),
		"event", string(ev),
	)
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, o.stage)
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stage:       o.stage,
		LastFailure: o.lastFailure,
		Allowed:     AllowedEvents(o.stage),
	}
	if o.category != nil {
		cat := *o.category
		snap.Category = &cat
		snap.SubServices = append([]catalog.SubService(nil), o.subServices...)
	}
	if o.subService != nil {
		sub := *o.subService
		snap.SubService = &sub
		snap.Workers = append([]catalog.Worker(nil), o.workers...)
	}
	if o.worker != nil {
		w := *o.worker
		snap.Worker = &w
	}
	if o.session != nil {
		var rated *Rating
		if o.session.Rating != nil {
			r := *o.session.Rating
			rated = &r
		}
		snap.Session = &SessionView{
			ID:            o.session.ID,
			Stage:         o.session.Stage,
			Category:      o.session.Category.Name,
			SubService:    o.session.SubService.Name,
			Worker:        o.session.Worker,
			Schedule:      o.session.Schedule,
			PaymentMethod: o.session.PaymentMethod,
			TotalAmount:   o.session.TotalAmount,
			ETASeconds:    int(o.etaLeft.Seconds()),
			Rating:        rated,
			CreatedAt:     o.session.CreatedAt,
			UpdatedAt:     o.session.UpdatedAt,
		}
	}
	return snap
}

func (o *Orchestrator) auditLocked(ctx context.Context, from, to Stage, ev EventKind, cause audit.Cause) {
	if o.deps.Trail == nil {
		return
	}
	entry := audit.Entry{
		CustomerID: o.customerID,
		FromStage:  string(from),
		ToStage:    string(to),
		Event:      string(ev),
		Cause:      cause,
		At:         time.Now(),
	}
	if o.session != nil {
		entry.SessionID = o.session.ID
	} else if o.lastFailure != nil {
		entry.SessionID = o.lastFailure.SessionID
	}
	if err := o.deps.Trail.Append(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "Failed to append audit entry", "error", err)
	}
}

func (o *Orchestrator) publishLocked(ctx context.Context, subject string, payload interface{}) {
	if o.deps.Bus == nil {
		return
	}
	if err := o.deps.Bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

func (o *Orchestrator) emitLocked(u Update) {
	if o.onUpdate != nil {
		// Subscribers must not call back into the orchestrator synchronously.
		o.onUpdate(u)
	}
}
