package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kaamwale/kaamwale-bookings/internal/booking"
	"github.com/kaamwale/kaamwale-bookings/internal/catalog"
	"github.com/kaamwale/kaamwale-bookings/internal/dispatch"
	"github.com/kaamwale/kaamwale-bookings/internal/otp"
	"github.com/kaamwale/kaamwale-bookings/internal/payment"
	"github.com/kaamwale/kaamwale-bookings/internal/rating"
)

// ---------- Mocks ----------

// manualSource is a dispatch source driven by the test instead of timers.
type manualSource struct {
	mu      sync.Mutex
	events  dispatch.Events
	watched map[string]bool
	stopped []string
}

func newManualSource() *manualSource {
	return &manualSource{watched: make(map[string]bool)}
}

func (s *manualSource) Bind(ev dispatch.Events) {
	s.mu.Lock()
	s.events = ev
	s.mu.Unlock()
}

func (s *manualSource) WatchAcceptance(sessionID string) {
	s.mu.Lock()
	s.watched[sessionID] = true
	s.mu.Unlock()
}

func (s *manualSource) WatchArrival(sessionID string, eta time.Duration) {
	s.mu.Lock()
	s.watched[sessionID] = true
	s.mu.Unlock()
}

func (s *manualSource) Stop(sessionID string) {
	s.mu.Lock()
	delete(s.watched, sessionID)
	s.stopped = append(s.stopped, sessionID)
	s.mu.Unlock()
}

func (s *manualSource) acceptance(sessionID string) { s.events.AcceptanceReceived(sessionID) }
func (s *manualSource) arrival(sessionID string)    { s.events.ArrivalDetected(sessionID) }

// fakeOTP always issues the same code and mirrors the real service's
// mismatch counting and lockout.
type fakeOTP struct {
	mu       sync.Mutex
	code     string
	issued   int
	attempts int
	maxTries int
	issueErr error
}

func newFakeOTP() *fakeOTP {
	return &fakeOTP{code: "1234", maxTries: 5}
}

func (f *fakeOTP) Issue(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued++
	f.attempts = 0
	return f.code, nil
}

func (f *fakeOTP) Verify(ctx context.Context, sessionID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts >= f.maxTries {
		return otp.ErrLocked
	}
	if code != f.code {
		f.attempts++
		return otp.ErrMismatch
	}
	return nil
}

// fakePayments records charges and declines on demand.
type fakePayments struct {
	mu      sync.Mutex
	err     error
	charges []chargeCall
}

type chargeCall struct {
	sessionID string
	method    string
	amount    int64
}

func (f *fakePayments) Charge(ctx context.Context, sessionID, method string, amount int64) (*payment.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.charges = append(f.charges, chargeCall{sessionID, method, amount})
	return &payment.Receipt{Reference: "test-ref", Method: method, Amount: amount, CapturedAt: time.Now()}, nil
}

// failSink rejects every rating.
type failSink struct{}

func (failSink) Record(ctx context.Context, rec rating.Record) error {
	return errors.New("sink down")
}

// ---------- Helpers ----------

type fixture struct {
	orch     *booking.Orchestrator
	source   *manualSource
	otp      *fakeOTP
	payments *fakePayments
	sink     *rating.MemorySink
	updates  chan booking.Update
}

func newFixture(t *testing.T, cfg booking.Config) *fixture {
	t.Helper()

	f := &fixture{
		source:   newManualSource(),
		otp:      newFakeOTP(),
		payments: &fakePayments{},
		sink:     rating.NewMemorySink(),
		updates:  make(chan booking.Update, 32),
	}
	f.orch = booking.NewOrchestrator("cust-1", booking.Deps{
		Directory: catalog.NewStaticDirectory(),
		Source:    f.source,
		OTP:       f.otp,
		Payments:  f.payments,
		Ratings:   f.sink,
	}, cfg)
	f.orch.OnUpdate(func(u booking.Update) {
		select {
		case f.updates <- u:
		default:
		}
	})
	return f
}

func (f *fixture) waitUpdate(t *testing.T) booking.Update {
	t.Helper()
	select {
	case u := <-f.updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for orchestrator update")
		return booking.Update{}
	}
}

func confirmReq() booking.ConfirmRequest {
	return booking.ConfirmRequest{
		Date:          time.Now().Add(24 * time.Hour),
		Slot:          "10:00-12:00",
		CustomerName:  "Anita Desai",
		CustomerPhone: "+91-9876543210",
		Address:       "14 MG Road, Pune",
		PaymentMethod: "upi",
	}
}

// toAwaitingAcceptance walks the fixture through browse and confirmation with
// the seeded plumber catalog.
func (f *fixture) toAwaitingAcceptance(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	if _, err := f.orch.SelectCategory(ctx, "plumber"); err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	if _, err := f.orch.SelectSubService(ctx, "tap-repair"); err != nil {
		t.Fatalf("SelectSubService: %v", err)
	}
	if _, err := f.orch.SelectWorker(ctx, "w-ramesh"); err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	snap, err := f.orch.ConfirmBooking(ctx, confirmReq())
	if err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if snap.Session == nil {
		t.Fatal("confirmed booking has no session")
	}
	return snap.Session.ID
}

// toAwaitingPayment continues from acceptance through the on-site flow.
func (f *fixture) toAwaitingPayment(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	id := f.toAwaitingAcceptance(t)
	f.source.acceptance(id)
	f.waitUpdate(t)
	if _, err := f.orch.ContinueToTracking(ctx); err != nil {
		t.Fatalf("ContinueToTracking: %v", err)
	}
	f.source.arrival(id)
	f.waitUpdate(t)
	if _, err := f.orch.SubmitOTP(ctx, "1234"); err != nil {
		t.Fatalf("SubmitOTP: %v", err)
	}
	if _, err := f.orch.MarkServiceComplete(ctx); err != nil {
		t.Fatalf("MarkServiceComplete: %v", err)
	}
	return id
}

// ---------- Tests ----------

func TestHappyPathLifecycle(t *testing.T) {
	f := newFixture(t, booking.Config{CompletedLinger: 30 * time.Millisecond})
	ctx := context.Background()

	snap, err := f.orch.SelectCategory(ctx, "plumber")
	if err != nil {
		t.Fatalf("SelectCategory: %v", err)
	}
	if snap.Stage != booking.StageCategorySelected {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageCategorySelected)
	}
	if len(snap.SubServices) != 4 {
		t.Errorf("sub-services = %d, want 4", len(snap.SubServices))
	}

	snap, err = f.orch.SelectSubService(ctx, "tap-repair")
	if err != nil {
		t.Fatalf("SelectSubService: %v", err)
	}
	if len(snap.Workers) != 3 {
		t.Errorf("workers = %d, want 3", len(snap.Workers))
	}

	snap, err = f.orch.SelectWorker(ctx, "w-ramesh")
	if err != nil {
		t.Fatalf("SelectWorker: %v", err)
	}
	if snap.Worker == nil || snap.Worker.Price != 300 {
		t.Fatalf("worker price = %+v, want 300", snap.Worker)
	}

	snap, err = f.orch.ConfirmBooking(ctx, confirmReq())
	if err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if snap.Stage != booking.StageAwaitingAcceptance {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageAwaitingAcceptance)
	}
	// Worker price 300 plus the platform fee.
	if snap.Session.TotalAmount != 320 {
		t.Fatalf("total = %d, want 320", snap.Session.TotalAmount)
	}
	id := snap.Session.ID

	f.source.acceptance(id)
	u := f.waitUpdate(t)
	if u.Snapshot.Stage != booking.StageAccepted {
		t.Fatalf("stage after acceptance = %s, want %s", u.Snapshot.Stage, booking.StageAccepted)
	}

	// Payment method can still be swapped before tracking.
	snap, err = f.orch.ChangePaymentMethod(ctx, "cash")
	if err != nil {
		t.Fatalf("ChangePaymentMethod: %v", err)
	}
	if snap.Session.PaymentMethod != booking.PaymentCash {
		t.Errorf("payment method = %s, want cash", snap.Session.PaymentMethod)
	}

	snap, err = f.orch.ContinueToTracking(ctx)
	if err != nil {
		t.Fatalf("ContinueToTracking: %v", err)
	}
	if snap.Stage != booking.StageTracking {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageTracking)
	}

	f.source.arrival(id)
	u = f.waitUpdate(t)
	if u.Snapshot.Stage != booking.StageAwaitingVerification {
		t.Fatalf("stage after arrival = %s, want %s", u.Snapshot.Stage, booking.StageAwaitingVerification)
	}
	if f.otp.issued != 1 {
		t.Fatalf("otp issued %d times, want 1", f.otp.issued)
	}

	snap, err = f.orch.SubmitOTP(ctx, "1234")
	if err != nil {
		t.Fatalf("SubmitOTP: %v", err)
	}
	if snap.Stage != booking.StageInProgress {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageInProgress)
	}

	snap, err = f.orch.MarkServiceComplete(ctx)
	if err != nil {
		t.Fatalf("MarkServiceComplete: %v", err)
	}
	if snap.Stage != booking.StageAwaitingPayment {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageAwaitingPayment)
	}

	snap, err = f.orch.SubmitPayment(ctx, "", 320)
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if snap.Stage != booking.StageAwaitingRating {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageAwaitingRating)
	}
	if len(f.payments.charges) != 1 || f.payments.charges[0].amount != 320 {
		t.Fatalf("charges = %+v, want one charge of 320", f.payments.charges)
	}
	if f.payments.charges[0].method != "cash" {
		t.Errorf("charged method = %s, want cash", f.payments.charges[0].method)
	}

	snap, err = f.orch.SubmitRating(ctx, 5, "fixed quickly", 4)
	if err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}
	if snap.Stage != booking.StageCompleted {
		t.Fatalf("stage = %s, want %s", snap.Stage, booking.StageCompleted)
	}
	if recs := f.sink.All(); len(recs) != 1 || recs[0].WorkerStars != 5 {
		t.Fatalf("ratings = %+v, want one 5-star record", recs)
	}

	// Completed lingers briefly, then the orchestrator resets itself.
	u = f.waitUpdate(t)
	if u.Snapshot.Stage != booking.StageIdle {
		t.Fatalf("stage after linger = %s, want %s", u.Snapshot.Stage, booking.StageIdle)
	}
	if u.Snapshot.Session != nil {
		t.Error("session survived the reset")
	}
}

func TestConfirmRejectsSecondSession(t *testing.T) {
	f := newFixture(t, booking.Config{})
	f.toAwaitingAcceptance(t)

	_, err := f.orch.ConfirmBooking(context.Background(), confirmReq())
	if !errors.Is(err, booking.ErrSessionActive) && !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("second confirm error = %v, want session-active or invalid-transition", err)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	// None of these are valid from idle.
	if _, err := f.orch.SubmitOTP(ctx, "1234"); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("SubmitOTP from idle = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.orch.SubmitPayment(ctx, "cash", 320); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("SubmitPayment from idle = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.orch.SubmitRating(ctx, 5, "", 0); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("SubmitRating from idle = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.orch.ContinueToTracking(ctx); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Errorf("ContinueToTracking from idle = %v, want ErrInvalidTransition", err)
	}

	// Rejections leave the stage untouched.
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageIdle {
		t.Fatalf("stage = %s, want idle", snap.Stage)
	}
}

func TestConfirmValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*booking.ConfirmRequest)
	}{
		{"empty address", func(r *booking.ConfirmRequest) { r.Address = "" }},
		{"empty name", func(r *booking.ConfirmRequest) { r.CustomerName = "" }},
		{"empty phone", func(r *booking.ConfirmRequest) { r.CustomerPhone = "" }},
		{"empty slot", func(r *booking.ConfirmRequest) { r.Slot = "" }},
		{"past date", func(r *booking.ConfirmRequest) { r.Date = time.Now().Add(-48 * time.Hour) }},
		{"bad payment method", func(r *booking.ConfirmRequest) { r.PaymentMethod = "cheque" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, booking.Config{})
			ctx := context.Background()
			f.orch.SelectCategory(ctx, "plumber")
			f.orch.SelectSubService(ctx, "tap-repair")
			f.orch.SelectWorker(ctx, "w-ramesh")

			req := confirmReq()
			tt.mutate(&req)
			if _, err := f.orch.ConfirmBooking(ctx, req); !errors.Is(err, booking.ErrValidation) {
				t.Fatalf("ConfirmBooking = %v, want ErrValidation", err)
			}
			// Still confirmable after fixing the input.
			if snap := f.orch.Snapshot(); snap.Stage != booking.StageWorkerSelected {
				t.Fatalf("stage = %s, want worker_selected", snap.Stage)
			}
		})
	}
}

func TestOTPMismatchAndLockout(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	id := f.toAwaitingAcceptance(t)
	f.source.acceptance(id)
	f.waitUpdate(t)
	f.orch.ContinueToTracking(ctx)
	f.source.arrival(id)
	f.waitUpdate(t)

	// Wrong codes keep the stage and the code; the fifth failure locks.
	for i := 0; i < 5; i++ {
		_, err := f.orch.SubmitOTP(ctx, "0000")
		if !errors.Is(err, booking.ErrOTPMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrOTPMismatch", i+1, err)
		}
		if snap := f.orch.Snapshot(); snap.Stage != booking.StageAwaitingVerification {
			t.Fatalf("attempt %d moved stage to %s", i+1, snap.Stage)
		}
	}

	if _, err := f.orch.SubmitOTP(ctx, "1234"); !errors.Is(err, booking.ErrOTPLocked) {
		t.Fatalf("locked submit = %v, want ErrOTPLocked", err)
	}

	// Cancel remains the way out.
	snap, err := f.orch.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.Stage != booking.StageIdle {
		t.Fatalf("stage after cancel = %s, want idle", snap.Stage)
	}
}

func TestOTPCorrectAfterMismatch(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	id := f.toAwaitingAcceptance(t)
	f.source.acceptance(id)
	f.waitUpdate(t)
	f.orch.ContinueToTracking(ctx)
	f.source.arrival(id)
	f.waitUpdate(t)

	if _, err := f.orch.SubmitOTP(ctx, "9999"); !errors.Is(err, booking.ErrOTPMismatch) {
		t.Fatalf("wrong code = %v, want ErrOTPMismatch", err)
	}
	snap, err := f.orch.SubmitOTP(ctx, "1234")
	if err != nil {
		t.Fatalf("correct code after mismatch: %v", err)
	}
	if snap.Stage != booking.StageInProgress {
		t.Fatalf("stage = %s, want in_progress", snap.Stage)
	}
}

func TestResendOTPRecoversFromLockout(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	id := f.toAwaitingAcceptance(t)
	f.source.acceptance(id)
	f.waitUpdate(t)
	f.orch.ContinueToTracking(ctx)
	f.source.arrival(id)
	f.waitUpdate(t)

	for i := 0; i < 5; i++ {
		if _, err := f.orch.SubmitOTP(ctx, "0000"); !errors.Is(err, booking.ErrOTPMismatch) {
			t.Fatalf("attempt %d: err = %v, want ErrOTPMismatch", i+1, err)
		}
	}
	if _, err := f.orch.SubmitOTP(ctx, "1234"); !errors.Is(err, booking.ErrOTPLocked) {
		t.Fatalf("locked submit = %v, want ErrOTPLocked", err)
	}

	// A fresh code replaces the locked one and restarts the counter.
	snap, err := f.orch.ResendOTP(ctx)
	if err != nil {
		t.Fatalf("ResendOTP: %v", err)
	}
	if snap.Stage != booking.StageAwaitingVerification {
		t.Fatalf("stage after resend = %s, want awaiting_verification", snap.Stage)
	}
	if f.otp.issued != 2 {
		t.Fatalf("otp issued %d times, want 2", f.otp.issued)
	}

	snap, err = f.orch.SubmitOTP(ctx, "1234")
	if err != nil {
		t.Fatalf("correct code after resend: %v", err)
	}
	if snap.Stage != booking.StageInProgress {
		t.Fatalf("stage = %s, want in_progress", snap.Stage)
	}
}

func TestResendOTPOnlyWhileAwaitingVerification(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	if _, err := f.orch.ResendOTP(ctx); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("resend from idle = %v, want ErrInvalidTransition", err)
	}

	f.toAwaitingAcceptance(t)
	if _, err := f.orch.ResendOTP(ctx); !errors.Is(err, booking.ErrInvalidTransition) {
		t.Fatalf("resend before arrival = %v, want ErrInvalidTransition", err)
	}
	if f.otp.issued != 0 {
		t.Errorf("otp issued %d times outside verification, want 0", f.otp.issued)
	}
}

func TestPaymentAmountMustMatchTotal(t *testing.T) {
	f := newFixture(t, booking.Config{})
	f.toAwaitingPayment(t)

	_, err := f.orch.SubmitPayment(context.Background(), "upi", 300)
	if !errors.Is(err, booking.ErrAmountMismatch) {
		t.Fatalf("mismatched amount = %v, want ErrAmountMismatch", err)
	}
	if len(f.payments.charges) != 0 {
		t.Fatal("processor was charged despite amount mismatch")
	}
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageAwaitingPayment {
		t.Fatalf("stage = %s, want awaiting_payment", snap.Stage)
	}
}

func TestPaymentDeclinedThenRetried(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()
	f.toAwaitingPayment(t)

	f.payments.err = payment.ErrDeclined
	_, err := f.orch.SubmitPayment(ctx, "card", 320)
	if !errors.Is(err, booking.ErrPaymentDeclined) {
		t.Fatalf("declined charge = %v, want ErrPaymentDeclined", err)
	}
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageAwaitingPayment {
		t.Fatalf("stage after decline = %s, want awaiting_payment", snap.Stage)
	}

	// Retry with another method succeeds.
	f.payments.err = nil
	snap, err := f.orch.SubmitPayment(ctx, "cash", 320)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snap.Stage != booking.StageAwaitingRating {
		t.Fatalf("stage after retry = %s, want awaiting_rating", snap.Stage)
	}
}

func TestCancelDiscardsSession(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	id := f.toAwaitingAcceptance(t)
	snap, err := f.orch.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.Stage != booking.StageIdle || snap.Session != nil {
		t.Fatalf("snapshot after cancel = %+v, want idle with no session", snap)
	}

	// Watches for the dead session are torn down, later events are ignored.
	f.source.mu.Lock()
	stopped := len(f.source.stopped) > 0
	f.source.mu.Unlock()
	if !stopped {
		t.Error("dispatch watch was not stopped on cancel")
	}
	f.source.acceptance(id)
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageIdle {
		t.Fatalf("stale acceptance moved stage to %s", snap.Stage)
	}
}

func TestCancelFromIdleIsNoop(t *testing.T) {
	f := newFixture(t, booking.Config{})
	snap, err := f.orch.Cancel(context.Background())
	if err != nil {
		t.Fatalf("Cancel from idle: %v", err)
	}
	if snap.Stage != booking.StageIdle {
		t.Fatalf("stage = %s, want idle", snap.Stage)
	}
}

func TestCancelFromCompletedSkipsLinger(t *testing.T) {
	f := newFixture(t, booking.Config{CompletedLinger: time.Minute})
	ctx := context.Background()

	f.toAwaitingPayment(t)
	if _, err := f.orch.SubmitPayment(ctx, "", 320); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	snap, err := f.orch.SubmitRating(ctx, 5, "", 0)
	if err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}
	if snap.Stage != booking.StageCompleted {
		t.Fatalf("stage = %s, want completed", snap.Stage)
	}

	// Cancel resets straight away rather than waiting out the display linger.
	snap, err = f.orch.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel from completed: %v", err)
	}
	if snap.Stage != booking.StageIdle || snap.Session != nil {
		t.Fatalf("snapshot after cancel = %+v, want idle with no session", snap)
	}

	// The next booking can start immediately.
	snap, err = f.orch.SelectCategory(ctx, "plumber")
	if err != nil {
		t.Fatalf("SelectCategory after completed cancel: %v", err)
	}
	if snap.Stage != booking.StageCategorySelected {
		t.Fatalf("stage = %s, want category_selected", snap.Stage)
	}
}

func TestCancelWhileBrowsingDiscardsSelections(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	f.orch.SelectCategory(ctx, "plumber")
	f.orch.SelectSubService(ctx, "tap-repair")

	snap, err := f.orch.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.Stage != booking.StageIdle || snap.Category != nil || snap.SubService != nil {
		t.Fatalf("selections survived cancel: %+v", snap)
	}
}

func TestAcceptanceTimeout(t *testing.T) {
	f := newFixture(t, booking.Config{AcceptanceTimeout: 30 * time.Millisecond})
	id := f.toAwaitingAcceptance(t)

	u := f.waitUpdate(t)
	if !errors.Is(u.Err, booking.ErrAcceptanceTimeout) {
		t.Fatalf("update err = %v, want ErrAcceptanceTimeout", u.Err)
	}
	if u.Snapshot.Stage != booking.StageIdle {
		t.Fatalf("stage after timeout = %s, want idle", u.Snapshot.Stage)
	}
	if u.Snapshot.LastFailure == nil || u.Snapshot.LastFailure.SessionID != id {
		t.Fatalf("last failure = %+v, want session %s", u.Snapshot.LastFailure, id)
	}

	// Late acceptance from the timed-out session is dropped.
	f.source.acceptance(id)
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageIdle {
		t.Fatalf("stale acceptance moved stage to %s", snap.Stage)
	}

	// Starting over clears the failure.
	snap, err := f.orch.SelectCategory(context.Background(), "plumber")
	if err != nil {
		t.Fatalf("SelectCategory after timeout: %v", err)
	}
	if snap.LastFailure != nil {
		t.Error("last failure survived a fresh start")
	}
}

func TestAcceptanceTimerStoppedOnAccept(t *testing.T) {
	f := newFixture(t, booking.Config{AcceptanceTimeout: 40 * time.Millisecond})
	id := f.toAwaitingAcceptance(t)

	f.source.acceptance(id)
	u := f.waitUpdate(t)
	if u.Snapshot.Stage != booking.StageAccepted {
		t.Fatalf("stage = %s, want accepted", u.Snapshot.Stage)
	}

	// The timeout must not fire after acceptance.
	time.Sleep(80 * time.Millisecond)
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageAccepted {
		t.Fatalf("stage after timer window = %s, want accepted", snap.Stage)
	}
}

func TestRatingValidation(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()
	f.toAwaitingPayment(t)
	if _, err := f.orch.SubmitPayment(ctx, "", 320); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}

	for _, stars := range []int{0, 6, -1} {
		if _, err := f.orch.SubmitRating(ctx, stars, "", 0); !errors.Is(err, booking.ErrInvalidRating) {
			t.Errorf("worker stars %d: err = %v, want ErrInvalidRating", stars, err)
		}
	}
	if _, err := f.orch.SubmitRating(ctx, 4, "", 9); !errors.Is(err, booking.ErrInvalidRating) {
		t.Errorf("platform stars 9: err = %v, want ErrInvalidRating", err)
	}

	// Skipping the platform rating is allowed.
	snap, err := f.orch.SubmitRating(ctx, 4, "", 0)
	if err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}
	if snap.Stage != booking.StageCompleted {
		t.Fatalf("stage = %s, want completed", snap.Stage)
	}
}

func TestRatingSinkFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	f := &fixture{
		source:   newManualSource(),
		otp:      newFakeOTP(),
		payments: &fakePayments{},
		updates:  make(chan booking.Update, 32),
	}
	f.orch = booking.NewOrchestrator("cust-2", booking.Deps{
		Directory: catalog.NewStaticDirectory(),
		Source:    f.source,
		OTP:       f.otp,
		Payments:  f.payments,
		Ratings:   failSink{},
	}, booking.Config{})
	f.orch.OnUpdate(func(u booking.Update) {
		select {
		case f.updates <- u:
		default:
		}
	})

	f.toAwaitingPayment(t)
	if _, err := f.orch.SubmitPayment(ctx, "", 320); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	snap, err := f.orch.SubmitRating(ctx, 3, "", 0)
	if err != nil {
		t.Fatalf("SubmitRating with failing sink: %v", err)
	}
	if snap.Stage != booking.StageCompleted {
		t.Fatalf("stage = %s, want completed", snap.Stage)
	}
}

func TestArrivalInWrongStageIgnored(t *testing.T) {
	f := newFixture(t, booking.Config{})
	id := f.toAwaitingAcceptance(t)

	// Arrival before tracking must not move the stage.
	f.source.arrival(id)
	if snap := f.orch.Snapshot(); snap.Stage != booking.StageAwaitingAcceptance {
		t.Fatalf("stage = %s, want awaiting_acceptance", snap.Stage)
	}
	if f.otp.issued != 0 {
		t.Error("otp issued for out-of-stage arrival")
	}
}

func TestSnapshotAllowedEventsFollowStage(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	snap := f.orch.Snapshot()
	if len(snap.Allowed) != 1 || snap.Allowed[0] != booking.EventSelectCategory {
		t.Fatalf("idle allowed = %v, want [select_category]", snap.Allowed)
	}

	f.orch.SelectCategory(ctx, "plumber")
	snap = f.orch.Snapshot()
	want := map[booking.EventKind]bool{booking.EventSelectSubService: true, booking.EventCancel: true}
	if len(snap.Allowed) != len(want) {
		t.Fatalf("allowed = %v, want %v", snap.Allowed, want)
	}
	for _, ev := range snap.Allowed {
		if !want[ev] {
			t.Errorf("unexpected allowed event %s", ev)
		}
	}
}
