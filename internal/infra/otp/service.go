// Package otp issues and checks SMS one-time codes. Only SHA-256 hashes of the
// codes are stored.
package otp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
)

const purposePhoneVerification = "phone_verification"

// Service implements port.OTPProvider.
type Service struct {
	codes    port.OTPCodeStore
	sender   port.SMSSender
	tokens   port.VerificationTokenIssuer
	cfg      config.OTPSettings
	generate func(length int) (string, error)
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the service.
type Option func(*Service)

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCodeGenerator replaces the random code source, used in tests.
func WithCodeGenerator(fn func(length int) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.generate = fn
		}
	}
}

func NewService(codes port.OTPCodeStore, sender port.SMSSender, tokens port.VerificationTokenIssuer, cfg config.OTPSettings, log *zap.Logger, opts ...Option) *Service {
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MessageTemplate == "" {
		cfg.MessageTemplate = "Votre code GoShopper: %s"
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		codes:    codes,
		sender:   sender,
		tokens:   tokens,
		cfg:      cfg,
		generate: security.GenerateNumericCode,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendOTP replaces any outstanding code for phone and texts the new one.
// phone is the canonical number without '+'.
func (s *Service) SendOTP(ctx context.Context, phone string) (domain.OTPDispatch, error) {
	code, err := s.generate(s.cfg.Length)
	if err != nil {
		return domain.OTPDispatch{}, fmt.Errorf("generate otp: %w", err)
	}

	record, err := s.codes.Store(ctx, purposePhoneVerification, phone, security.HashToken(code), s.cfg.TTL)
	if err != nil {
		return domain.OTPDispatch{}, fmt.Errorf("store otp: %w", err)
	}

	if err := s.sender.Send(ctx, "+"+phone, fmt.Sprintf(s.cfg.MessageTemplate, code)); err != nil {
		// A code nobody received must not stay verifiable.
		if delErr := s.codes.Delete(ctx, purposePhoneVerification, phone); delErr != nil {
			s.log.Warn("failed to drop undelivered otp", zap.String("phone", logger.MaskPhone(phone)), zap.Error(delErr))
		}
		return domain.OTPDispatch{}, domain.NewAuthError(domain.AuthNetworkFailed, fmt.Errorf("deliver otp: %w", err))
	}

	s.log.Info("otp sent", zap.String("phone", logger.MaskPhone(phone)), zap.Time("expires_at", record.ExpiresAt))
	return domain.OTPDispatch{
		Phone:             phone,
		SentAt:            record.CreatedAt,
		ExpiresAt:         record.ExpiresAt,
		ResendAvailableAt: record.CreatedAt,
	}, nil
}

// VerifyOTP checks code and, on success, consumes it and returns a signed
// phone verification token. The store settles each guess atomically, so
// MaxAttempts bounds guesses even when they arrive in parallel.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (domain.OTPVerification, error) {
	if !validFormat(code, s.cfg.Length) {
		return domain.OTPVerification{}, domain.ErrOTPInvalidFormat
	}

	now := s.now()
	check, err := s.codes.Check(ctx, purposePhoneVerification, phone, security.HashToken(code), s.cfg.MaxAttempts, now)
	if err != nil {
		return domain.OTPVerification{}, fmt.Errorf("check otp: %w", err)
	}

	switch check.Outcome {
	case domain.OTPMatched:
	case domain.OTPMismatched:
		return domain.OTPVerification{}, domain.ErrOTPInvalid
	case domain.OTPExhausted:
		s.log.Warn("otp attempts exhausted", zap.String("phone", logger.MaskPhone(phone)), zap.Int("attempts", check.Attempts))
		return domain.OTPVerification{}, domain.ErrOTPAttemptsExceeded
	default:
		return domain.OTPVerification{}, domain.ErrOTPExpired
	}

	token, err := s.tokens.IssuePhoneVerification(phone)
	if err != nil {
		return domain.OTPVerification{}, fmt.Errorf("issue verification token: %w", err)
	}
	return domain.OTPVerification{Phone: phone, Token: token, VerifiedAt: now}, nil
}

func validFormat(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ port.OTPProvider = (*Service)(nil)
