package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
)

const (
	passwordResetRateLimitScope = "password_reset"
	passwordChangeReason        = "password_change"
	passwordResetReason         = "password_reset"
)

var (
	// ErrEmailRequired indicates a reset request without a usable address.
	ErrEmailRequired = errors.New("a valid email is required")
	// ErrResetTokenRequired indicates a confirmation without a token.
	ErrResetTokenRequired = errors.New("reset token is required")
	// ErrCurrentPasswordRequired indicates a change without the current password.
	ErrCurrentPasswordRequired = errors.New("current password is required")
)

// RateLimitExceededError reports a per-identifier limit with the wait until the
// window frees up.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry in %s", e.Scope, e.RetryAfter.Round(time.Second))
}

// PasswordChangeInput captures an authenticated password change.
type PasswordChangeInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// PasswordResetConfirmInput carries the token from the reset email and the new password.
type PasswordResetConfirmInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// PasswordResetService coordinates reset requests, reset confirmation and
// authenticated password changes. Every password passes through the change
// policy and is sanitized before it is hashed or verified.
type PasswordResetService struct {
	identity   port.IdentityProvider
	passwords  port.PasswordEvaluator
	hasher     port.PasswordHasher
	rateLimits port.RateLimitStore
	events     port.EventPublisher
	plan       *numbering.Plan
	limits     config.RateLimitSettings
	logger     *zap.Logger
	now        func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService. rateLimits and
// events may be nil.
func NewPasswordResetService(identity port.IdentityProvider, passwords port.PasswordEvaluator, hasher port.PasswordHasher, rateLimits port.RateLimitStore, events port.EventPublisher, plan *numbering.Plan, limits config.RateLimitSettings, logger *zap.Logger) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordResetService{
		identity:   identity,
		passwords:  passwords,
		hasher:     hasher,
		rateLimits: rateLimits,
		events:     events,
		plan:       plan,
		limits:     limits,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the clock, used in tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestPasswordReset asks the identity collaborator to mail a reset link.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return domain.NewValidationError("email", ErrEmailRequired)
	}

	now := s.now().UTC()
	if err := s.enforceResetRateLimit(ctx, email, now); err != nil {
		return err
	}

	token, err := s.identity.SendPasswordResetEmail(ctx, email)
	if err != nil {
		return err
	}

	if s.events != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			UserID:            token.UserID,
			RequestedAt:       now,
			MaskedDestination: logger.MaskEmail(email),
			ExpiresAt:         token.ExpiresAt,
		}
		if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("publish password reset requested failed", zap.String("user_id", token.UserID), zap.Error(err))
		}
	}
	return nil
}

// ConfirmPasswordReset validates the new password and consumes the token.
func (s *PasswordResetService) ConfirmPasswordReset(ctx context.Context, input PasswordResetConfirmInput) (domain.User, domain.PasswordValidationResult, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return domain.User{}, domain.PasswordValidationResult{}, domain.NewValidationError("token", ErrResetTokenRequired)
	}

	result, hash, err := s.prepareNewPassword(input.NewPassword, input.ConfirmPassword, "", domain.PasswordHints{})
	if err != nil {
		return domain.User{}, result, err
	}

	user, err := s.identity.ConfirmPasswordReset(ctx, token, hash)
	if err != nil {
		return domain.User{}, result, err
	}

	s.publishPasswordChanged(ctx, user.ID, passwordResetReason)
	return user, result, nil
}

// ChangePassword replaces the password of a signed-in user after the identity
// collaborator confirms the current one.
func (s *PasswordResetService) ChangePassword(ctx context.Context, input PasswordChangeInput) (domain.PasswordValidationResult, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return domain.PasswordValidationResult{}, domain.NewAuthError(domain.AuthRequiresRecentLogin, nil)
	}
	current := s.passwords.Sanitize(input.CurrentPassword)
	if current == "" {
		return domain.PasswordValidationResult{}, domain.NewValidationError("current_password", ErrCurrentPasswordRequired)
	}

	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return domain.PasswordValidationResult{}, err
	}

	result, hash, err := s.prepareNewPassword(input.NewPassword, input.ConfirmPassword, current, s.hintsFor(user))
	if err != nil {
		return result, err
	}

	if err := s.identity.UpdatePassword(ctx, userID, current, hash); err != nil {
		return result, err
	}

	s.publishPasswordChanged(ctx, userID, passwordChangeReason)
	return result, nil
}

// prepareNewPassword evaluates the change policy, the confirmation and, when
// current is set, that the new password differs from it; then hashes it.
func (s *PasswordResetService) prepareNewPassword(candidate, confirm, current string, hints domain.PasswordHints) (domain.PasswordValidationResult, string, error) {
	result, err := s.passwords.Evaluate(candidate, domain.PasswordPolicyChange, hints)
	if err != nil {
		return domain.PasswordValidationResult{}, "", fmt.Errorf("evaluate password: %w", err)
	}

	sanitized := s.passwords.Sanitize(candidate)
	if current != "" && sanitized == current {
		result.Valid = false
		result.Violations = append(result.Violations, domain.PasswordViolation{Rule: domain.RuleDifferent})
	}
	if !result.Valid {
		return result, "", &domain.ValidationError{
			Field:      "new_password",
			Policy:     domain.PasswordPolicyChange,
			Violations: result.Violations,
			Err:        domain.ErrPasswordPolicy,
		}
	}
	if !s.passwords.PasswordsMatch(candidate, confirm) {
		return result, "", &domain.ValidationError{
			Field:      "confirm_password",
			Violations: []domain.PasswordViolation{{Rule: domain.RuleMismatch}},
			Err:        domain.ErrPasswordMismatch,
		}
	}

	hash, err := s.hasher.Hash(sanitized)
	if err != nil {
		return result, "", fmt.Errorf("hash password: %w", err)
	}
	return result, hash, nil
}

func (s *PasswordResetService) hintsFor(user domain.User) domain.PasswordHints {
	hints := domain.PasswordHints{Phone: user.Phone, Name: user.Name}
	if s.plan != nil {
		if country, ok := s.plan.Lookup(user.CountryISO); ok {
			hints.Subscriber = strings.TrimPrefix(user.Phone, country.DialCode)
		}
	}
	return hints
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID, reason string) {
	s.logger.Info("password changed", zap.String("user_id", userID), zap.String("reason", reason))
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: s.now().UTC(),
		ChangedBy: reason,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// enforceResetRateLimit is best effort: store failures are logged and the
// request goes through.
func (s *PasswordResetService) enforceResetRateLimit(ctx context.Context, email string, now time.Time) error {
	if s.rateLimits == nil {
		return nil
	}

	limit := s.limits.PasswordResetMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := s.limits.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	storageKey := fmt.Sprintf("%s:%s", passwordResetRateLimitScope, email)

	state, err := s.rateLimits.Take(ctx, storageKey, limit, window, now)
	if err != nil {
		s.logger.Warn("password reset rate limit unavailable", zap.String("scope", passwordResetRateLimitScope), zap.Error(err))
		return nil
	}
	if !state.Allowed {
		return &RateLimitExceededError{Scope: passwordResetRateLimitScope, RetryAfter: state.RetryAfter(now)}
	}
	return nil
}
