package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
)

var (
	// ErrNotIssued means no live code exists for the session.
	ErrNotIssued = errors.New("otp: no code issued for session")
	// ErrMismatch is retryable; the stored code stays valid.
	ErrMismatch = errors.New("otp: code mismatch")
	// ErrLocked means the attempt limit was reached.
	ErrLocked = errors.New("otp: attempt limit reached")
)

// Store persists code hashes and attempt counters. Codes are stored hashed;
// the plain code exists only in the issue response and the customer channel.
type Store interface {
	Save(ctx context.Context, sessionID, hash string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (hash string, attempts int, err error)
	IncrAttempts(ctx context.Context, sessionID string) (int, error)
	Delete(ctx context.Context, sessionID string) error
}

// Service issues and verifies the 4-digit on-site codes. One code per session,
// single use: verification deletes it.
type Service struct {
	store       Store
	ttl         time.Duration
	maxAttempts int
}

func NewService(store Store, ttl time.Duration, maxAttempts int) *Service {
	return &Service{store: store, ttl: ttl, maxAttempts: maxAttempts}
}

func (s *Service) Issue(ctx context.Context, sessionID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := argon2id.CreateHash(code, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	if err := s.store.Save(ctx, sessionID, hash, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}

	return code, nil
}

func (s *Service) Verify(ctx context.Context, sessionID, code string) error {
	hash, attempts, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if s.maxAttempts > 0 && attempts >= s.maxAttempts {
		return ErrLocked
	}

	match, err := argon2id.ComparePasswordAndHash(code, hash)
	if err != nil {
		return fmt.Errorf("failed to compare code: %w", err)
	}
	if !match {
		if _, err := s.store.IncrAttempts(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		return ErrMismatch
	}

	// Single use: a verified code is gone.
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate code: %w", err)
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
