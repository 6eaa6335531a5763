package port

import (
	"context"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// DraftStore keeps registration drafts for the length of their session.
type DraftStore interface {
	Create(ctx context.Context, draft domain.RegistrationDraft) error
	Get(ctx context.Context, id string) (domain.RegistrationDraft, error)
	// Update applies fn atomically; the draft is not written when fn returns an error.
	Update(ctx context.Context, id string, fn func(*domain.RegistrationDraft) error) (domain.RegistrationDraft, error)
	Delete(ctx context.Context, id string) error
}

// OTPProvider sends and verifies one-time SMS codes.
type OTPProvider interface {
	SendOTP(ctx context.Context, phone string) (domain.OTPDispatch, error)
	VerifyOTP(ctx context.Context, phone, code string) (domain.OTPVerification, error)
}

// OTPCodeStore persists hashed one-time codes.
type OTPCodeStore interface {
	Store(ctx context.Context, purpose, identifier, codeHash string, ttl time.Duration) (domain.OTPRecord, error)
	// Check compares codeHash with the pending code and counts the attempt in
	// one step. Matched and exhausted codes are removed.
	Check(ctx context.Context, purpose, identifier, codeHash string, maxAttempts int, now time.Time) (domain.OTPCheck, error)
	Delete(ctx context.Context, purpose, identifier string) error
}

// SMSSender delivers a text message to an E.164 number.
type SMSSender interface {
	Send(ctx context.Context, phoneE164, message string) error
}
