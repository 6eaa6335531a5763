package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/telemetry"
)

// ErrIdentifierRequired indicates an empty phone/email on sign-in.
var ErrIdentifierRequired = errors.New("identifier is required")

// SignInRequest is the sign-in input. Identifier is a phone number, typed in
// national or international form, or an email address.
type SignInRequest struct {
	Identifier string
	Password   string
	CountryISO string
	IP         string
	UserAgent  string
}

// AuthService coordinates sign-in with the lockout tracker.
type AuthService struct {
	plan       *numbering.Plan
	identity   port.IdentityProvider
	tracker    *LockoutTracker
	passwords  port.PasswordEvaluator
	tokens     port.AccessTokenIssuer
	metrics    *telemetry.Metrics
	defaultISO string
	log        *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	plan *numbering.Plan,
	identity port.IdentityProvider,
	tracker *LockoutTracker,
	passwords port.PasswordEvaluator,
	tokens port.AccessTokenIssuer,
	metrics *telemetry.Metrics,
	defaultISO string,
	log *zap.Logger,
) *AuthService {
	if defaultISO == "" {
		defaultISO = "CD"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		plan:       plan,
		identity:   identity,
		tracker:    tracker,
		passwords:  passwords,
		tokens:     tokens,
		metrics:    metrics,
		defaultISO: defaultISO,
		log:        log,
	}
}

// SignIn checks the throttle first, then the identity collaborator, and records
// the outcome. Wrong-password and user-not-found count as failures; transport
// failures do not. The returned status reflects the attempt.
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (domain.SignInResult, domain.SecurityStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.SignIn")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	identifier, err := s.ResolveIdentifier(req.Identifier, req.CountryISO)
	if err != nil {
		return domain.SignInResult{}, domain.SecurityStatus{}, err
	}
	password := s.passwords.Sanitize(req.Password)
	if password == "" {
		err = domain.NewValidationError("password", errors.New("password is required"))
		return domain.SignInResult{}, domain.SecurityStatus{}, err
	}

	status, err := s.tracker.Check(ctx, identifier)
	if err != nil {
		s.metrics.ObserveLogin("throttled")
		return domain.SignInResult{}, status, err
	}

	meta := AttemptMeta{IP: req.IP, UserAgent: req.UserAgent}
	user, err := s.identity.SignIn(ctx, identifier, password)
	if err != nil {
		code := domain.AuthErrorCode(err)
		if code != domain.AuthWrongPassword && code != domain.AuthUserNotFound {
			s.metrics.ObserveLogin("error")
			return domain.SignInResult{}, status, err
		}
		s.metrics.ObserveLogin("failure")
		updated, recErr := s.tracker.RecordAttempt(ctx, identifier, false, meta)
		if recErr != nil {
			logger.WithContext(ctx).Warn("record failed sign-in", zap.Error(recErr))
			return domain.SignInResult{}, status, err
		}
		return domain.SignInResult{}, updated, err
	}

	meta.UserID = user.ID
	status, recErr := s.tracker.RecordAttempt(ctx, identifier, true, meta)
	if recErr != nil {
		logger.WithContext(ctx).Warn("record successful sign-in", zap.Error(recErr))
	}

	token, expiresIn, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		err = fmt.Errorf("issue access token: %w", err)
		return domain.SignInResult{}, status, err
	}

	s.metrics.ObserveLogin("success")
	s.log.Info("user signed in",
		zap.String("user_id", user.ID),
		zap.String("identifier", logger.MaskIdentifier(identifier)),
	)
	return domain.SignInResult{User: user, AccessToken: token, ExpiresIn: expiresIn}, status, nil
}

// SecurityStatus returns the tracker status and soft delay for an identifier.
func (s *AuthService) SecurityStatus(ctx context.Context, rawIdentifier, iso string) (domain.SecurityStatus, domain.LoginDelay, error) {
	identifier, err := s.ResolveIdentifier(rawIdentifier, iso)
	if err != nil {
		return domain.SecurityStatus{}, domain.LoginDelay{}, err
	}
	status, err := s.tracker.GetSecurityStatus(ctx, identifier)
	if err != nil {
		return domain.SecurityStatus{}, domain.LoginDelay{}, err
	}
	delay, err := s.tracker.ShouldDelayLogin(ctx, identifier)
	if err != nil {
		return domain.SecurityStatus{}, domain.LoginDelay{}, err
	}
	return status, delay, nil
}

// ResolveIdentifier maps raw input onto the tracker key: a lower-cased email or
// the canonical phone number.
func (s *AuthService) ResolveIdentifier(raw, iso string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("identifier", ErrIdentifierRequired)
	}
	if strings.Contains(raw, "@") {
		return strings.ToLower(raw), nil
	}

	if iso = strings.ToUpper(strings.TrimSpace(iso)); iso == "" {
		iso = s.defaultISO
	}
	details, err := s.plan.Parse(raw, iso)
	if err != nil {
		if strings.HasPrefix(raw, "+") {
			if intl, intlErr := s.plan.ParseInternational(raw); intlErr == nil {
				return intl.Number.Canonical(), nil
			}
		}
		return "", err
	}
	return details.Number.Canonical(), nil
}
