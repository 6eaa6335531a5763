package port

import (
	"context"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// IdentityProvider is the account collaborator. Failures carry a *domain.AuthError
// with a provider code.
type IdentityProvider interface {
	SignIn(ctx context.Context, identifier, password string) (domain.User, error)
	SignUp(ctx context.Context, input domain.SignUpInput) (domain.User, error)
	MarkPhoneVerified(ctx context.Context, userID string, at time.Time) error
	PhoneExists(ctx context.Context, phone string) (bool, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	SendPasswordResetEmail(ctx context.Context, email string) (domain.PasswordResetToken, error)
	ConfirmPasswordReset(ctx context.Context, token, newPasswordHash string) (domain.User, error)
	UpdatePassword(ctx context.Context, userID, currentPassword, newPasswordHash string) error
}

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// ProfileStore persists opaque profile fields keyed by user id.
type ProfileStore interface {
	SaveProfile(ctx context.Context, userID string, fields map[string]any) error
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// LoginAuditRepository appends sign-in attempts to the audit trail.
type LoginAuditRepository interface {
	Record(ctx context.Context, attempt domain.LoginAttempt) error
}
