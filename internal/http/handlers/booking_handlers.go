package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kaamwale/kaamwale-bookings/internal/booking"
)

// GetBooking returns the customer's current booking snapshot: stage, stage
// payload and allowed events. The client renders entirely from this.
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	orch := h.manager.ForCustomer(claims.Sub)
	writeJSON(w, http.StatusOK, orch.Snapshot())
}

type selectCategoryReq struct {
	CategoryID string `json:"category_id" validate:"required"`
}

// SelectCategory enters browsing for one service category.
func (h *Handlers) SelectCategory(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req selectCategoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SelectCategory(r.Context(), req.CategoryID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectSubServiceReq struct {
	SubServiceID string `json:"sub_service_id" validate:"required"`
}

// SelectSubService picks a sub-service and loads its worker candidates.
func (h *Handlers) SelectSubService(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req selectSubServiceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SelectSubService(r.Context(), req.SubServiceID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type selectWorkerReq struct {
	WorkerID string `json:"worker_id" validate:"required"`
}

// SelectWorker picks one worker from the fetched candidate list.
func (h *Handlers) SelectWorker(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req selectWorkerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SelectWorker(r.Context(), req.WorkerID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type confirmBookingReq struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot          string `json:"slot" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerPhone string `json:"customer_phone" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash upi card wallet"`
}

// ConfirmBooking creates the session and starts the acceptance wait. The
// route carries idempotency middleware: retried confirmations replay the
// stored response instead of hitting the session-already-active guard.
func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req confirmBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid date, want YYYY-MM-DD")
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).ConfirmBooking(r.Context(), booking.ConfirmRequest{
		Date:          date,
		Slot:          req.Slot,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// CancelBooking discards the active session, or browse selections when no
// session exists yet. From idle or completed it just acknowledges.
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).Cancel(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type paymentMethodReq struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash upi card wallet"`
}

// ChangePaymentMethod swaps the method while the booking sits in accepted.
func (h *Handlers) ChangePaymentMethod(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req paymentMethodReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).ChangePaymentMethod(r.Context(), req.PaymentMethod)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StartTracking begins the worker travel countdown.
func (h *Handlers) StartTracking(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).ContinueToTracking(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type submitOTPReq struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

// SubmitOTP verifies the worker's on-site code and starts the service.
func (h *Handlers) SubmitOTP(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req submitOTPReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SubmitOTP(r.Context(), req.Code)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ResendOTP replaces the on-site code for a booking awaiting verification
// and restarts the attempt counter.
func (h *Handlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).ResendOTP(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CompleteService marks the job done and moves the booking to payment.
func (h *Handlers) CompleteService(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).MarkServiceComplete(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type submitPaymentReq struct {
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash upi card wallet"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

// SubmitPayment charges the booking total. The amount must match the total
// fixed at confirmation; a declined charge leaves the stage open for retry.
func (h *Handlers) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req submitPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SubmitPayment(r.Context(), req.PaymentMethod, req.Amount)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type submitRatingReq struct {
	WorkerStars    int    `json:"worker_stars" validate:"required,min=1,max=5"`
	WorkerFeedback string `json:"worker_feedback" validate:"omitempty,max=2000"`
	PlatformStars  int    `json:"platform_stars" validate:"omitempty,min=1,max=5"`
}

// SubmitRating records the customer verdict and completes the booking.
func (h *Handlers) SubmitRating(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req submitRatingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	snap, err := h.manager.ForCustomer(claims.Sub).SubmitRating(r.Context(), req.WorkerStars, req.WorkerFeedback, req.PlatformStars)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
