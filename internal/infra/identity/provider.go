// Package identity implements the account collaborator on top of the users
// and password_resets tables. Every failure a client can act on is returned as
// a *domain.AuthError carrying a provider code.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

const resetTokenBytes = 32

// UserStore is the subset of the user repository the provider needs.
type UserStore interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	MarkPhoneVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// ResetStore persists hashed password reset tokens.
type ResetStore interface {
	Create(ctx context.Context, token domain.PasswordResetToken) error
	GetByHash(ctx context.Context, tokenHash string) (domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	InvalidateForUser(ctx context.Context, userID string, at time.Time) (int, error)
}

// Provider implements port.IdentityProvider.
type Provider struct {
	users    UserStore
	resets   ResetStore
	hasher   port.PasswordHasher
	mailer   port.Mailer
	resetTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// Option customises the provider.
type Option func(*Provider)

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

func WithResetTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.resetTTL = ttl
		}
	}
}

func NewProvider(users UserStore, resets ResetStore, hasher port.PasswordHasher, mailer port.Mailer, log *zap.Logger, opts ...Option) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Provider{
		users:    users,
		resets:   resets,
		hasher:   hasher,
		mailer:   mailer,
		resetTTL: time.Hour,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignIn authenticates by canonical phone or lower-cased email.
func (p *Provider) SignIn(ctx context.Context, identifier, password string) (domain.User, error) {
	user, err := p.lookup(ctx, identifier)
	if err != nil {
		return domain.User{}, err
	}

	ok, err := p.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return domain.User{}, domain.NewAuthError(domain.AuthInternalError, fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return domain.User{}, domain.NewAuthError(domain.AuthWrongPassword, nil)
	}

	p.upgradeHash(ctx, user, password)

	now := p.now().UTC()
	if err := p.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		p.log.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

// rehasher is implemented by hashers whose cost parameters can change.
type rehasher interface {
	NeedsRehash(encoded string) bool
}

// upgradeHash re-encodes the password under the current parameters. The
// stored password change time is kept.
func (p *Provider) upgradeHash(ctx context.Context, user domain.User, password string) {
	rh, ok := p.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := p.hasher.Hash(password)
	if err != nil {
		p.log.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := p.users.UpdatePassword(ctx, user.ID, hash, user.LastPasswordChange); err != nil {
		p.log.Warn("store rehashed password failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	p.log.Debug("password rehashed", zap.String("user_id", user.ID))
}

// SignUp creates the account from exactly the supplied fields.
func (p *Provider) SignUp(ctx context.Context, input domain.SignUpInput) (domain.User, error) {
	if strings.TrimSpace(input.Phone) == "" || input.PasswordHash == "" {
		return domain.User{}, domain.NewAuthError(domain.AuthInvalidCredential, errors.New("phone and password are required"))
	}

	now := p.now().UTC()
	user := domain.User{
		ID:                 uuid.NewString(),
		Phone:              input.Phone,
		Name:               input.Name,
		City:               input.City,
		CountryISO:         input.CountryISO,
		PasswordHash:       input.PasswordHash,
		CreatedAt:          now,
		LastPasswordChange: now,
	}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, domain.NewAuthError(domain.AuthPhoneAlreadyExists, err)
		}
		return domain.User{}, unavailable(err)
	}

	p.log.Info("account created", zap.String("user_id", user.ID), zap.String("phone", logger.MaskPhone(user.Phone)))
	return user, nil
}

func (p *Provider) MarkPhoneVerified(ctx context.Context, userID string, at time.Time) error {
	if err := p.users.MarkPhoneVerified(ctx, userID, at.UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewAuthError(domain.AuthUserNotFound, err)
		}
		return unavailable(err)
	}
	return nil
}

func (p *Provider) PhoneExists(ctx context.Context, phone string) (bool, error) {
	exists, err := p.users.PhoneExists(ctx, phone)
	if err != nil {
		return false, unavailable(err)
	}
	return exists, nil
}

func (p *Provider) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewAuthError(domain.AuthUserNotFound, err)
		}
		return domain.User{}, unavailable(err)
	}
	return user, nil
}

// SendPasswordResetEmail stores a hashed single-use token and mails the raw one.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) (domain.PasswordResetToken, error) {
	user, err := p.lookup(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.PasswordResetToken{}, err
	}

	raw, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return domain.PasswordResetToken{}, domain.NewAuthError(domain.AuthInternalError, fmt.Errorf("generate reset token: %w", err))
	}
	now := p.now().UTC()
	token := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(p.resetTTL),
	}
	if err := p.resets.Create(ctx, token); err != nil {
		return domain.PasswordResetToken{}, unavailable(err)
	}
	if err := p.mailer.SendPasswordReset(ctx, user.Email, raw, token.ExpiresAt); err != nil {
		return domain.PasswordResetToken{}, domain.NewAuthError(domain.AuthNetworkFailed, fmt.Errorf("send reset email: %w", err))
	}
	return token, nil
}

// ConfirmPasswordReset consumes the token and stores the new hash.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPasswordHash string) (domain.User, error) {
	record, err := p.resets.GetByHash(ctx, security.HashToken(strings.TrimSpace(token)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewAuthError(domain.AuthInvalidActionCode, nil)
		}
		return domain.User{}, unavailable(err)
	}

	now := p.now().UTC()
	if record.UsedAt != nil {
		return domain.User{}, domain.NewAuthError(domain.AuthInvalidActionCode, nil)
	}
	if !now.Before(record.ExpiresAt) {
		return domain.User{}, domain.NewAuthError(domain.AuthExpiredActionCode, nil)
	}
	if err := p.resets.MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewAuthError(domain.AuthInvalidActionCode, nil)
		}
		return domain.User{}, unavailable(err)
	}

	if err := p.users.UpdatePassword(ctx, record.UserID, newPasswordHash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewAuthError(domain.AuthUserNotFound, err)
		}
		return domain.User{}, unavailable(err)
	}
	if _, err := p.resets.InvalidateForUser(ctx, record.UserID, now); err != nil {
		p.log.Warn("failed to invalidate outstanding reset tokens", zap.String("user_id", record.UserID), zap.Error(err))
	}
	return p.GetUser(ctx, record.UserID)
}

// UpdatePassword requires the current password before storing the new hash.
func (p *Provider) UpdatePassword(ctx context.Context, userID, currentPassword, newPasswordHash string) error {
	user, err := p.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := p.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return domain.NewAuthError(domain.AuthInternalError, fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return domain.NewAuthError(domain.AuthWrongPassword, nil)
	}
	if err := p.users.UpdatePassword(ctx, userID, newPasswordHash, p.now().UTC()); err != nil {
		return unavailable(err)
	}
	return nil
}

func (p *Provider) lookup(ctx context.Context, identifier string) (domain.User, error) {
	var (
		user domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = p.users.GetByEmail(ctx, identifier)
	} else {
		user, err = p.users.GetByPhone(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.NewAuthError(domain.AuthUserNotFound, nil)
		}
		return domain.User{}, unavailable(err)
	}
	return user, nil
}

func unavailable(err error) error {
	return domain.NewAuthError(domain.AuthNetworkFailed, err)
}

var _ port.IdentityProvider = (*Provider)(nil)
