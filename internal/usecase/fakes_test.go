package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

var errBoom = errors.New("boom")

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	locked     []domain.LoginLockedEvent
	changed    []domain.PasswordChangedEvent
	resets     []domain.PasswordResetRequestedEvent
	initiated  []domain.PaymentInitiatedEvent
	settled    []domain.PaymentSettledEvent
}

func (p *recordingPublisher) PublishAccountRegistered(_ context.Context, e domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *recordingPublisher) PublishLoginLocked(_ context.Context, e domain.LoginLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, e)
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, e)
	return nil
}

func (p *recordingPublisher) PublishPaymentInitiated(_ context.Context, e domain.PaymentInitiatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initiated = append(p.initiated, e)
	return nil
}

func (p *recordingPublisher) PublishPaymentSettled(_ context.Context, e domain.PaymentSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

type fakeAudit struct {
	attempts []domain.LoginAttempt
	err      error
}

func (f *fakeAudit) Record(_ context.Context, attempt domain.LoginAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return f.err
}

// fakeIdentity is an in-memory identity collaborator. Passwords are stored as
// "h:<plain>" to line up with plainHasher.
type fakeIdentity struct {
	users map[string]domain.User

	signUpErr       error
	markVerifiedErr error
	phoneExistsErr  error

	signUpCalls      int
	lastSignUp       domain.SignUpInput
	markVerified     []string
	resetEmails      []string
	confirmedResets  int
	passwordUpdates  int
	lastUpdatedHash  string
	lastResetHash    string
	confirmResetErr  error
	updatePasswordEr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: map[string]domain.User{}}
}

func (f *fakeIdentity) SignIn(_ context.Context, identifier, password string) (domain.User, error) {
	for _, u := range f.users {
		if u.Phone == identifier || (u.Email != "" && u.Email == identifier) {
			if u.PasswordHash != "h:"+password {
				return domain.User{}, domain.NewAuthError(domain.AuthWrongPassword, nil)
			}
			return u, nil
		}
	}
	return domain.User{}, domain.NewAuthError(domain.AuthUserNotFound, nil)
}

func (f *fakeIdentity) SignUp(_ context.Context, input domain.SignUpInput) (domain.User, error) {
	f.signUpCalls++
	f.lastSignUp = input
	if f.signUpErr != nil {
		return domain.User{}, f.signUpErr
	}
	for _, u := range f.users {
		if u.Phone == input.Phone {
			return domain.User{}, domain.NewAuthError(domain.AuthPhoneAlreadyExists, repository.ErrConflict)
		}
	}
	user := domain.User{
		ID:           "user-" + input.Phone,
		Phone:        input.Phone,
		Name:         input.Name,
		City:         input.City,
		CountryISO:   input.CountryISO,
		PasswordHash: input.PasswordHash,
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeIdentity) MarkPhoneVerified(_ context.Context, userID string, at time.Time) error {
	if f.markVerifiedErr != nil {
		return f.markVerifiedErr
	}
	u, ok := f.users[userID]
	if !ok {
		return domain.NewAuthError(domain.AuthUserNotFound, nil)
	}
	u.PhoneVerified, u.PhoneVerifiedAt = true, &at
	f.users[userID] = u
	f.markVerified = append(f.markVerified, userID)
	return nil
}

func (f *fakeIdentity) PhoneExists(_ context.Context, phone string) (bool, error) {
	if f.phoneExistsErr != nil {
		return false, f.phoneExistsErr
	}
	for _, u := range f.users {
		if u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIdentity) GetUser(_ context.Context, userID string) (domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, domain.NewAuthError(domain.AuthUserNotFound, nil)
	}
	return u, nil
}

func (f *fakeIdentity) SendPasswordResetEmail(_ context.Context, email string) (domain.PasswordResetToken, error) {
	for _, u := range f.users {
		if u.Email == email {
			f.resetEmails = append(f.resetEmails, email)
			return domain.PasswordResetToken{ID: "reset-1", UserID: u.ID, ExpiresAt: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)}, nil
		}
	}
	return domain.PasswordResetToken{}, domain.NewAuthError(domain.AuthUserNotFound, nil)
}

func (f *fakeIdentity) ConfirmPasswordReset(_ context.Context, token, newPasswordHash string) (domain.User, error) {
	if f.confirmResetErr != nil {
		return domain.User{}, f.confirmResetErr
	}
	f.confirmedResets++
	f.lastResetHash = newPasswordHash
	for id, u := range f.users {
		u.PasswordHash = newPasswordHash
		f.users[id] = u
		return u, nil
	}
	return domain.User{}, domain.NewAuthError(domain.AuthInvalidActionCode, nil)
}

func (f *fakeIdentity) UpdatePassword(_ context.Context, userID, currentPassword, newPasswordHash string) error {
	if f.updatePasswordEr != nil {
		return f.updatePasswordEr
	}
	u, ok := f.users[userID]
	if !ok {
		return domain.NewAuthError(domain.AuthUserNotFound, nil)
	}
	if u.PasswordHash != "h:"+currentPassword {
		return domain.NewAuthError(domain.AuthWrongPassword, nil)
	}
	f.passwordUpdates++
	f.lastUpdatedHash = newPasswordHash
	u.PasswordHash = newPasswordHash
	f.users[userID] = u
	return nil
}

var _ port.IdentityProvider = (*fakeIdentity)(nil)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error)          { return "h:" + p, nil }
func (plainHasher) Verify(p, encoded string) (bool, error) { return encoded == "h:"+p, nil }

type fakeTokens struct {
	issued []string
}

func (f *fakeTokens) IssueAccessToken(user domain.User) (string, int, error) {
	f.issued = append(f.issued, user.ID)
	return "access-" + user.ID, 3600, nil
}

func (f *fakeTokens) ParseAccessToken(token string) (string, error) {
	if len(token) > len("access-") && token[:len("access-")] == "access-" {
		return token[len("access-"):], nil
	}
	return "", errors.New("invalid token")
}

type fakeOTP struct {
	code      string
	sent      []string
	sendErr   error
	verifyErr error
	now       func() time.Time
}

func (f *fakeOTP) SendOTP(_ context.Context, phone string) (domain.OTPDispatch, error) {
	if f.sendErr != nil {
		return domain.OTPDispatch{}, f.sendErr
	}
	f.sent = append(f.sent, phone)
	now := f.now()
	return domain.OTPDispatch{Phone: phone, SentAt: now, ExpiresAt: now.Add(5 * time.Minute), ResendAvailableAt: now}, nil
}

func (f *fakeOTP) VerifyOTP(_ context.Context, phone, code string) (domain.OTPVerification, error) {
	if f.verifyErr != nil {
		return domain.OTPVerification{}, f.verifyErr
	}
	if code != f.code {
		return domain.OTPVerification{}, domain.ErrOTPInvalid
	}
	return domain.OTPVerification{Phone: phone, Token: "verified-" + phone, VerifiedAt: f.now()}, nil
}

type fakeProfiles struct {
	saved map[string]map[string]any
	err   error
}

func (f *fakeProfiles) SaveProfile(_ context.Context, userID string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = map[string]map[string]any{}
	}
	merged := f.saved[userID]
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range fields {
		merged[k] = v
	}
	f.saved[userID] = merged
	return nil
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	fields, ok := f.saved[userID]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	return domain.Profile{UserID: userID, Fields: fields}, nil
}
