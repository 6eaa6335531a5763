package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID                 string
	Phone              string
	Email              string
	Name               string
	City               string
	CountryISO         string
	PasswordHash       string
	PhoneVerified      bool
	PhoneVerifiedAt    *time.Time
	CreatedAt          time.Time
	LastLogin          *time.Time
	LastPasswordChange time.Time
}

// SignUpInput carries exactly the fields collected by the registration draft.
type SignUpInput struct {
	Phone        string
	CountryISO   string
	City         string
	Name         string
	PasswordHash string
}

// LoginAttempt is the audit trail of a sign-in attempt.
type LoginAttempt struct {
	ID         string
	Identifier string
	UserID     *string
	Succeeded  bool
	Locked     bool
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
}

// PasswordResetToken is a persisted, hashed reset token.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Profile is the free-form document stored per user.
type Profile struct {
	UserID    string
	Fields    map[string]any
	UpdatedAt time.Time
}

// SignInResult is returned to clients after authenticating.
type SignInResult struct {
	User        User
	AccessToken string
	ExpiresIn   int
}
