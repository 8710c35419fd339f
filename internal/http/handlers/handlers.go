package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kaamwale/kaamwale-bookings/internal/audit"
	"github.com/kaamwale/kaamwale-bookings/internal/booking"
	"github.com/kaamwale/kaamwale-bookings/internal/catalog"
	"github.com/kaamwale/kaamwale-bookings/pkg/auth"
	"github.com/kaamwale/kaamwale-bookings/pkg/config"
	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

type Handlers struct {
	manager   *booking.Manager
	directory catalog.Directory
	trail     audit.Trail
	config    *config.Config
	validate  *validator.Validate
}

func New(manager *booking.Manager, directory catalog.Directory, trail audit.Trail, cfg *config.Config) *Handlers {
	return &Handlers{
		manager:   manager,
		directory: directory,
		trail:     trail,
		config:    cfg,
		validate:  validator.New(),
	}
}

// Middleware for JWT authentication
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != "admin" {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.CustomerIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey string

const claimsKey contextKey = "claims"

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// Helper functions for common response patterns
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "code": code})
}

// writeBookingError maps booking domain errors onto HTTP statuses and stable
// machine-readable codes. Unrecognized errors become a 500.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, booking.ErrSessionActive):
		writeError(w, http.StatusConflict, "SESSION_ALREADY_ACTIVE", err.Error())
	case errors.Is(err, booking.ErrWorkerUnavailable):
		writeError(w, http.StatusConflict, "WORKER_UNAVAILABLE", err.Error())
	case errors.Is(err, booking.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, "AMOUNT_MISMATCH", err.Error())
	case errors.Is(err, booking.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "PAYMENT_DECLINED", err.Error())
	case errors.Is(err, booking.ErrOTPMismatch):
		writeError(w, http.StatusUnprocessableEntity, "OTP_MISMATCH", err.Error())
	case errors.Is(err, booking.ErrOTPLocked):
		writeError(w, http.StatusLocked, "OTP_LOCKED", err.Error())
	case errors.Is(err, booking.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "INVALID_RATING", err.Error())
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
