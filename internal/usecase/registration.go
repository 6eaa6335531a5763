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
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/telemetry"
)

const (
	stepSignUp            = "sign_up"
	stepMarkPhoneVerified = "mark_phone_verified"
	stepIssueToken        = "issue_token"
)

// RegistrationDependencies are the collaborators of the registration flow.
// Events, Verifier and Metrics are optional.
type RegistrationDependencies struct {
	Plan      *numbering.Plan
	Identity  port.IdentityProvider
	Drafts    port.DraftStore
	OTP       port.OTPProvider
	Profiles  port.ProfileStore
	Passwords port.PasswordEvaluator
	Hasher    port.PasswordHasher
	Tokens    port.AccessTokenIssuer
	Verifier  port.VerificationTokenIssuer
	Events    port.EventPublisher
	Metrics   *telemetry.Metrics
}

// RegistrationService drives the profile -> OTP -> account sequence over a
// server-side draft.
type RegistrationService struct {
	deps RegistrationDependencies
	cfg  config.RegistrationSettings
	now  func() time.Time
	log  *zap.Logger
}

// RegistrationOption customises a RegistrationService.
type RegistrationOption func(*RegistrationService)

func WithRegistrationClock(now func() time.Time) RegistrationOption {
	return func(s *RegistrationService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRegistrationLogger(log *zap.Logger) RegistrationOption {
	return func(s *RegistrationService) {
		if log != nil {
			s.log = log
		}
	}
}

func NewRegistrationService(deps RegistrationDependencies, cfg config.RegistrationSettings, opts ...RegistrationOption) *RegistrationService {
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 30 * time.Minute
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = time.Minute
	}
	if cfg.DefaultCountryISO == "" {
		cfg.DefaultCountryISO = "CD"
	}
	s := &RegistrationService{
		deps: deps,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckPhone normalizes and validates the number, then asks the identity
// collaborator whether it is already registered. A taken number returns the
// availability together with ErrPhoneAlreadyExists.
func (s *RegistrationService) CheckPhone(ctx context.Context, raw, iso string) (domain.PhoneAvailability, error) {
	ctx, span := telemetry.StartSpan(ctx, "registration.CheckPhone")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if strings.TrimSpace(iso) == "" {
		iso = s.cfg.DefaultCountryISO
	}
	details, err := s.deps.Plan.Parse(raw, strings.ToUpper(strings.TrimSpace(iso)))
	if err != nil {
		return domain.PhoneAvailability{Phone: details}, err
	}

	exists, err := s.deps.Identity.PhoneExists(ctx, details.Number.Canonical())
	if err != nil {
		return domain.PhoneAvailability{Phone: details}, err
	}
	if exists {
		err = domain.NewValidationError("phone", domain.ErrPhoneAlreadyExists)
		return domain.PhoneAvailability{Phone: details}, err
	}
	return domain.PhoneAvailability{Phone: details, Available: true}, nil
}

// Begin opens a draft once the phone is confirmed available.
func (s *RegistrationService) Begin(ctx context.Context, profile domain.RegistrationProfile) (domain.RegistrationDraft, error) {
	city := strings.TrimSpace(profile.City)
	if city == "" {
		return domain.RegistrationDraft{}, domain.NewValidationError("city", errors.New("city is required"))
	}

	availability, err := s.CheckPhone(ctx, profile.Phone, profile.CountryISO)
	if err != nil {
		s.deps.Metrics.ObserveRegistrationStep("begin", "rejected")
		return domain.RegistrationDraft{}, err
	}

	now := s.now()
	number := availability.Phone.Number
	draft := domain.RegistrationDraft{
		ID:         uuid.NewString(),
		State:      domain.RegistrationPhoneConfirmedAvailable,
		Phone:      number.Canonical(),
		CountryISO: number.CountryISO,
		Carrier:    availability.Phone.Carrier,
		City:       city,
		Name:       strings.TrimSpace(profile.Name),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.DraftTTL),
	}
	if err := s.deps.Drafts.Create(ctx, draft); err != nil {
		return domain.RegistrationDraft{}, fmt.Errorf("create registration draft: %w", err)
	}

	s.deps.Metrics.ObserveRegistrationStep("begin", "ok")
	s.log.Info("registration started",
		zap.String("draft_id", draft.ID),
		zap.String("phone", logger.MaskPhone(draft.Phone)),
	)
	return draft, nil
}

// SubmitCredentials evaluates the password against the register policy,
// requires the confirmation and the terms, and stores only the Argon2id hash.
// On a policy failure the returned result lists every violation.
func (s *RegistrationService) SubmitCredentials(ctx context.Context, id string, creds domain.RegistrationCredentials) (domain.RegistrationDraft, domain.PasswordValidationResult, error) {
	draft, err := s.deps.Drafts.Get(ctx, id)
	if err != nil {
		return domain.RegistrationDraft{}, domain.PasswordValidationResult{}, err
	}
	if !credentialsAllowed(draft.State) {
		return domain.RegistrationDraft{}, domain.PasswordValidationResult{}, transitionError(draft.State, "submit credentials")
	}

	result, err := s.deps.Passwords.Evaluate(creds.Password, domain.PasswordPolicyRegister, s.hintsFor(draft))
	if err != nil {
		return domain.RegistrationDraft{}, domain.PasswordValidationResult{}, fmt.Errorf("evaluate password: %w", err)
	}
	if !result.Valid {
		return domain.RegistrationDraft{}, result, &domain.ValidationError{
			Field:      "password",
			Policy:     domain.PasswordPolicyRegister,
			Violations: result.Violations,
			Err:        domain.ErrPasswordPolicy,
		}
	}
	if !s.deps.Passwords.PasswordsMatch(creds.Password, creds.ConfirmPassword) {
		return domain.RegistrationDraft{}, result, &domain.ValidationError{
			Field:      "confirm_password",
			Violations: []domain.PasswordViolation{{Rule: domain.RuleMismatch}},
			Err:        domain.ErrPasswordMismatch,
		}
	}
	if !creds.AcceptTerms {
		return domain.RegistrationDraft{}, result, domain.NewValidationError("accept_terms", domain.ErrTermsNotAccepted)
	}

	hash, err := s.deps.Hasher.Hash(s.deps.Passwords.Sanitize(creds.Password))
	if err != nil {
		return domain.RegistrationDraft{}, result, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	updated, err := s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
		if !credentialsAllowed(d.State) {
			return transitionError(d.State, "submit credentials")
		}
		d.PasswordHash = hash
		d.TermsAcceptedAt = &now
		d.State = domain.RegistrationCollectingCredentials
		return nil
	})
	if err != nil {
		return domain.RegistrationDraft{}, result, err
	}
	s.deps.Metrics.ObserveRegistrationStep("credentials", "ok")
	return updated, result, nil
}

// SendOTP sends or resends the verification code. The resend countdown is
// reserved on the draft before the provider is called and released again if
// the send fails.
func (s *RegistrationService) SendOTP(ctx context.Context, id string) (domain.OTPDispatch, error) {
	ctx, span := telemetry.StartSpan(ctx, "registration.SendOTP")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	var previous *time.Time
	var retryAt time.Time
	draft, err := s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
		if d.State != domain.RegistrationCollectingCredentials && d.State != domain.RegistrationOTPSent {
			return transitionError(d.State, "send otp")
		}
		if d.ResendAvailableAt != nil && now.Before(*d.ResendAvailableAt) {
			retryAt = *d.ResendAvailableAt
			return domain.ErrOTPResendTooSoon
		}
		previous = d.ResendAvailableAt
		next := now.Add(s.cfg.ResendCooldown)
		d.ResendAvailableAt = &next
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrOTPResendTooSoon) {
			return domain.OTPDispatch{ResendAvailableAt: retryAt}, err
		}
		return domain.OTPDispatch{}, err
	}

	dispatch, err := s.deps.OTP.SendOTP(ctx, draft.Phone)
	if err != nil {
		if _, revertErr := s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
			d.ResendAvailableAt = previous
			return nil
		}); revertErr != nil {
			s.log.Warn("release otp cooldown failed", zap.String("draft_id", id), zap.Error(revertErr))
		}
		s.deps.Metrics.ObserveRegistrationStep("send_otp", "failed")
		return domain.OTPDispatch{}, err
	}

	resendAt := dispatch.SentAt.Add(s.cfg.ResendCooldown)
	if _, err = s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
		sentAt := dispatch.SentAt
		d.State = domain.RegistrationOTPSent
		d.OTPSentAt = &sentAt
		d.ResendAvailableAt = &resendAt
		return nil
	}); err != nil {
		return domain.OTPDispatch{}, fmt.Errorf("record otp dispatch: %w", err)
	}

	dispatch.ResendAvailableAt = resendAt
	s.deps.Metrics.ObserveOTPSent()
	s.deps.Metrics.ObserveRegistrationStep("send_otp", "ok")
	return dispatch, nil
}

// VerifyOTP checks the code with the provider, keeps the verification token
// on the draft and then creates the account.
func (s *RegistrationService) VerifyOTP(ctx context.Context, id, code string) (domain.RegistrationResult, error) {
	code = strings.TrimSpace(code)
	if !isOTPCode(code) {
		return domain.RegistrationResult{}, domain.NewValidationError("code", domain.ErrOTPInvalidFormat)
	}

	draft, err := s.deps.Drafts.Get(ctx, id)
	if err != nil {
		return domain.RegistrationResult{}, err
	}
	if draft.State == domain.RegistrationOTPVerified {
		return s.Complete(ctx, id)
	}
	if draft.State != domain.RegistrationOTPSent {
		return domain.RegistrationResult{}, transitionError(draft.State, "verify otp")
	}

	verification, err := s.deps.OTP.VerifyOTP(ctx, draft.Phone, code)
	if err != nil {
		s.deps.Metrics.ObserveRegistrationStep("verify_otp", "rejected")
		return domain.RegistrationResult{}, err
	}

	if _, err := s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
		if d.State != domain.RegistrationOTPSent {
			return transitionError(d.State, "verify otp")
		}
		d.VerificationToken = verification.Token
		d.State = domain.RegistrationOTPVerified
		return nil
	}); err != nil {
		return domain.RegistrationResult{}, err
	}
	s.deps.Metrics.ObserveRegistrationStep("verify_otp", "ok")

	return s.Complete(ctx, id)
}

// Complete creates the account from exactly the draft fields. The draft is
// claimed first so concurrent calls cannot create it twice. When a step after
// verification fails the draft goes back to otp_verified with its token and a
// *domain.SequencingError is returned; nothing is retried automatically.
func (s *RegistrationService) Complete(ctx context.Context, id string) (domain.RegistrationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "registration.Complete")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	draft, err := s.deps.Drafts.Update(ctx, id, func(d *domain.RegistrationDraft) error {
		if d.State != domain.RegistrationOTPVerified || d.VerificationToken == "" {
			return transitionError(d.State, "complete registration")
		}
		d.State = domain.RegistrationCreatingAccount
		return nil
	})
	if err != nil {
		return domain.RegistrationResult{}, err
	}

	if s.deps.Verifier != nil {
		phone, verr := s.deps.Verifier.ParsePhoneVerification(draft.VerificationToken)
		if verr != nil || phone != draft.Phone {
			if verr == nil {
				verr = errors.New("verification token issued for another phone")
			}
			err = s.fail(ctx, draft, stepSignUp, domain.NewAuthError(domain.AuthVerificationRequired, verr))
			return domain.RegistrationResult{}, err
		}
	}

	var user domain.User
	if draft.UserID == "" {
		user, err = s.deps.Identity.SignUp(ctx, domain.SignUpInput{
			Phone:        draft.Phone,
			CountryISO:   draft.CountryISO,
			City:         draft.City,
			Name:         draft.Name,
			PasswordHash: draft.PasswordHash,
		})
		if err != nil {
			err = s.fail(ctx, draft, stepSignUp, err)
			return domain.RegistrationResult{}, err
		}
		draft.UserID = user.ID
	} else {
		user, err = s.deps.Identity.GetUser(ctx, draft.UserID)
		if err != nil {
			err = s.fail(ctx, draft, stepSignUp, err)
			return domain.RegistrationResult{}, err
		}
	}

	if !user.PhoneVerified {
		verifiedAt := s.now()
		if err = s.deps.Identity.MarkPhoneVerified(ctx, user.ID, verifiedAt); err != nil {
			err = s.fail(ctx, draft, stepMarkPhoneVerified, err)
			return domain.RegistrationResult{}, err
		}
		user.PhoneVerified = true
		user.PhoneVerifiedAt = &verifiedAt
	}

	token, expiresIn, err := s.deps.Tokens.IssueAccessToken(user)
	if err != nil {
		err = s.fail(ctx, draft, stepIssueToken, err)
		return domain.RegistrationResult{}, err
	}

	s.afterAccountCreated(ctx, draft, user)
	s.deps.Metrics.ObserveRegistrationStep("complete", "ok")

	return domain.RegistrationResult{User: user, AccessToken: token, ExpiresIn: expiresIn}, nil
}

// Abandon discards the draft.
func (s *RegistrationService) Abandon(ctx context.Context, id string) error {
	if err := s.deps.Drafts.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete registration draft: %w", err)
	}
	s.deps.Metrics.ObserveRegistrationStep("abandon", "ok")
	return nil
}

// Get returns the draft without its secrets.
func (s *RegistrationService) Get(ctx context.Context, id string) (domain.RegistrationDraft, error) {
	draft, err := s.deps.Drafts.Get(ctx, id)
	if err != nil {
		return domain.RegistrationDraft{}, err
	}
	return draft.Redacted(), nil
}

// fail puts the draft back to otp_verified, keeping the verification token and
// any created user id, and wraps cause in a SequencingError.
func (s *RegistrationService) fail(ctx context.Context, draft domain.RegistrationDraft, step string, cause error) error {
	s.deps.Metrics.ObserveRegistrationStep("complete", "failed")
	logger.WithContext(ctx).Error("account creation failed after otp verification",
		zap.String("draft_id", draft.ID),
		zap.String("step", step),
		zap.Error(cause),
	)

	if _, err := s.deps.Drafts.Update(ctx, draft.ID, func(d *domain.RegistrationDraft) error {
		d.State = domain.RegistrationOTPVerified
		if draft.UserID != "" {
			d.UserID = draft.UserID
		}
		d.LastError = step
		return nil
	}); err != nil {
		s.log.Error("restore registration draft failed", zap.String("draft_id", draft.ID), zap.Error(err))
	}

	return &domain.SequencingError{Step: step, DraftID: draft.ID, Err: cause}
}

// afterAccountCreated runs the best-effort tail of Complete. The account
// exists at this point, so failures are logged only.
func (s *RegistrationService) afterAccountCreated(ctx context.Context, draft domain.RegistrationDraft, user domain.User) {
	log := logger.WithContext(ctx)

	if s.deps.Profiles != nil {
		fields := map[string]any{"city": draft.City, "country_iso": draft.CountryISO}
		if draft.Name != "" {
			fields["name"] = draft.Name
		}
		if err := s.deps.Profiles.SaveProfile(ctx, user.ID, fields); err != nil {
			log.Warn("save profile after registration failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if s.deps.Events != nil {
		event := domain.AccountRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Phone:        user.Phone,
			CountryISO:   draft.CountryISO,
			City:         draft.City,
			Carrier:      draft.Carrier,
			RegisteredAt: s.now(),
		}
		if err := s.deps.Events.PublishAccountRegistered(ctx, event); err != nil {
			log.Warn("publish account registered failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if err := s.deps.Drafts.Delete(ctx, draft.ID); err != nil {
		log.Warn("delete registration draft failed", zap.String("draft_id", draft.ID), zap.Error(err))
	}

	s.log.Info("account created",
		zap.String("user_id", user.ID),
		zap.String("phone", logger.MaskPhone(user.Phone)),
	)
}

func (s *RegistrationService) hintsFor(draft domain.RegistrationDraft) domain.PasswordHints {
	hints := domain.PasswordHints{Phone: draft.Phone, Name: draft.Name}
	if country, ok := s.deps.Plan.Lookup(draft.CountryISO); ok {
		hints.Subscriber = strings.TrimPrefix(draft.Phone, country.DialCode)
	}
	return hints
}

func credentialsAllowed(state domain.RegistrationState) bool {
	switch state {
	case domain.RegistrationPhoneConfirmedAvailable, domain.RegistrationCollectingCredentials, domain.RegistrationOTPSent:
		return true
	}
	return false
}

func transitionError(state domain.RegistrationState, step string) error {
	return fmt.Errorf("%w: cannot %s in state %s", domain.ErrInvalidTransition, step, state)
}

func isOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
