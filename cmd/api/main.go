package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/kaamwale/kaamwale-bookings/internal/audit"
	"github.com/kaamwale/kaamwale-bookings/internal/booking"
	"github.com/kaamwale/kaamwale-bookings/internal/catalog"
	"github.com/kaamwale/kaamwale-bookings/internal/dispatch"
	"github.com/kaamwale/kaamwale-bookings/internal/http/handlers"
	"github.com/kaamwale/kaamwale-bookings/internal/notify"
	"github.com/kaamwale/kaamwale-bookings/internal/otp"
	"github.com/kaamwale/kaamwale-bookings/internal/payment"
	"github.com/kaamwale/kaamwale-bookings/internal/rating"
	"github.com/kaamwale/kaamwale-bookings/internal/store"
	"github.com/kaamwale/kaamwale-bookings/pkg/config"
	"github.com/kaamwale/kaamwale-bookings/pkg/database"
	"github.com/kaamwale/kaamwale-bookings/pkg/events"
	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
	mw "github.com/kaamwale/kaamwale-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Audit trail: postgres when a database is reachable, memory otherwise.
	var trail audit.Trail
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Warn("Database unavailable, using in-memory audit trail", "error", err)
		trail = audit.NewMemoryTrail()
	} else {
		defer pool.Close()
		trail = audit.NewPostgresTrail(pool)
	}

	// OTP and idempotency stores: redis when reachable, memory otherwise.
	var otpStore otp.Store
	var idemStore mw.IdempotencyStore
	redisClient, err := store.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory stores", "error", err)
		otpStore = otp.NewMemoryStore()
	} else {
		defer redisClient.Close()
		otpStore = otp.NewRedisStore(redisClient)
		idemStore = store.NewRedisStore(redisClient)
	}
	otpService := otp.NewService(otpStore, cfg.Booking.OTPTTL, cfg.Booking.OTPMaxAttempts)

	// Event bus is optional: without NATS the lifecycle still runs, events
	// are just not published.
	var bus events.EventBus
	if eventBus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("NATS unavailable, lifecycle events disabled", "error", err)
	} else {
		bus = eventBus
		defer eventBus.Close()
	}

	// Dispatch source per customer: a timer-driven simulator in demo mode,
	// NATS dispatch events otherwise.
	var sources booking.SourceFactory
	if cfg.Booking.SimulateDispatch || bus == nil {
		sources = func() dispatch.Source {
			return dispatch.NewSimulator(cfg.Booking.AcceptanceDelay, cfg.Booking.ETATick)
		}
	} else {
		sources = func() dispatch.Source {
			src, err := dispatch.NewNATSSource(bus)
			if err != nil {
				logger.Error("Failed to subscribe dispatch events, falling back to simulator", "error", err)
				return dispatch.NewSimulator(cfg.Booking.AcceptanceDelay, cfg.Booking.ETATick)
			}
			return src
		}
	}

	// Payments: card charges go to Stripe when configured, everything else
	// is collected offline.
	offline := payment.NewOfflineProcessor()
	var processor payment.Processor = offline
	if cfg.Stripe.SecretKey != "" {
		processor = payment.NewMethodRouter(payment.NewStripeProcessor(cfg.Stripe.SecretKey), offline)
	}

	var notifier notify.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		notifier = notify.NewDevNotifier()
	} else {
		notifier = notify.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}

	directory := catalog.NewStaticDirectory()

	manager := booking.NewManager(booking.Deps{
		Directory: directory,
		OTP:       otpService,
		Payments:  processor,
		Ratings:   rating.NewMemorySink(),
		Notifier:  notifier,
		Bus:       bus,
		Trail:     trail,
	}, booking.Config{
		AcceptanceTimeout: cfg.Booking.AcceptanceTimeout,
		InitialETA:        cfg.Booking.InitialETA,
		CompletedLinger:   cfg.Booking.CompletedLinger,
	}, sources)

	h := handlers.New(manager, directory, trail, cfg)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	})
	r.Use(mw.CORS)
	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", h.ListCategories)
			r.Get("/categories/{id}/sub-services", h.ListSubServices)
			r.Get("/sub-services/{id}/workers", h.ListWorkers)
		})

		r.Route("/booking", func(r chi.Router) {
			r.Use(h.RequireJWT("customer"))
			r.Get("/", h.GetBooking)
			r.Post("/category", h.SelectCategory)
			r.Post("/sub-service", h.SelectSubService)
			r.Post("/worker", h.SelectWorker)
			if idemStore != nil {
				r.With(mw.IdempotencyMiddleware(idemStore)).Post("/confirm", h.ConfirmBooking)
			} else {
				r.Post("/confirm", h.ConfirmBooking)
			}
			r.Delete("/", h.CancelBooking)
			r.Put("/payment-method", h.ChangePaymentMethod)
			r.Post("/tracking", h.StartTracking)
			r.Post("/otp", h.SubmitOTP)
			r.Post("/otp/resend", h.ResendOTP)
			r.Post("/complete", h.CompleteService)
			r.Post("/payment", h.SubmitPayment)
			r.Post("/rating", h.SubmitRating)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/sessions", h.ListSessions)
			r.Get("/sessions/{id}/audit", h.GetSessionAudit)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}
