package domain

import "time"

// RegistrationState enumerates the steps of phone registration.
type RegistrationState string

const (
	RegistrationCollectingProfile       RegistrationState = "collecting_profile"
	RegistrationPhoneCheckPending       RegistrationState = "phone_check_pending"
	RegistrationPhoneConfirmedAvailable RegistrationState = "phone_confirmed_available"
	RegistrationCollectingCredentials   RegistrationState = "collecting_credentials"
	RegistrationOTPSent                 RegistrationState = "otp_sent"
	RegistrationOTPVerified             RegistrationState = "otp_verified"
	RegistrationCreatingAccount         RegistrationState = "creating_account"
	RegistrationAccountCreated          RegistrationState = "account_created"
)

// RegistrationDraft is the short-lived session carried between registration steps.
// It is never written to durable storage; the password is kept only as a hash.
type RegistrationDraft struct {
	ID                string            `json:"id"`
	State             RegistrationState `json:"state"`
	Phone             string            `json:"phone"`
	CountryISO        string            `json:"country_iso"`
	Carrier           Carrier           `json:"carrier,omitempty"`
	City              string            `json:"city"`
	Name              string            `json:"name,omitempty"`
	PasswordHash      string            `json:"password_hash,omitempty"`
	TermsAcceptedAt   *time.Time        `json:"terms_accepted_at,omitempty"`
	OTPSentAt         *time.Time        `json:"otp_sent_at,omitempty"`
	ResendAvailableAt *time.Time        `json:"resend_available_at,omitempty"`
	VerificationToken string            `json:"verification_token,omitempty"`
	UserID            string            `json:"user_id,omitempty"`
	LastError         string            `json:"last_error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
}

// Expired reports whether the draft outlived its session window.
func (d RegistrationDraft) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// Redacted drops the password hash and verification token for client views.
func (d RegistrationDraft) Redacted() RegistrationDraft {
	d.PasswordHash = ""
	d.VerificationToken = ""
	return d
}

// RegistrationProfile is the first-step input.
type RegistrationProfile struct {
	Phone      string
	CountryISO string
	City       string
	Name       string
}

// RegistrationCredentials is the second-step input.
type RegistrationCredentials struct {
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
}

// PhoneAvailability is the result of the registration phone check.
type PhoneAvailability struct {
	Phone     PhoneDetails
	Available bool
}

// OTPDispatch describes a sent one-time code.
type OTPDispatch struct {
	Phone             string
	SentAt            time.Time
	ExpiresAt         time.Time
	ResendAvailableAt time.Time
}

// OTPVerification is returned by the OTP provider once a code is accepted.
type OTPVerification struct {
	Phone      string
	Token      string
	VerifiedAt time.Time
}

// RegistrationResult is returned after the account is created.
type RegistrationResult struct {
	User        User
	AccessToken string
	ExpiresIn   int
}

// OTPRecord is a stored one-time code. Code holds the hash, never the raw digits.
type OTPRecord struct {
	Purpose    string
	Identifier string
	Code       string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// OTPOutcome classifies one guess against the stored code.
type OTPOutcome int

const (
	// OTPMissing means no live code: never sent, expired or already consumed.
	OTPMissing OTPOutcome = iota
	OTPMatched
	OTPMismatched
	// OTPExhausted means the guess used up the last attempt, or none were left.
	OTPExhausted
)

// OTPCheck is the store's verdict on a guess. Attempts counts wrong guesses so far.
type OTPCheck struct {
	Outcome  OTPOutcome
	Attempts int
}
