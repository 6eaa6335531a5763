package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPhoneFormat = errors.New("phone number has an invalid format")
	ErrUnknownCarrier     = errors.New("phone number prefix matches no known carrier")
	ErrUnsupportedCountry = errors.New("country is not supported")

	ErrPasswordPolicy     = errors.New("password does not satisfy policy")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrTermsNotAccepted   = errors.New("terms must be accepted")
	ErrPhoneAlreadyExists = errors.New("phone number already registered")

	ErrDraftNotFound     = errors.New("registration draft not found")
	ErrDraftExpired      = errors.New("registration draft expired")
	ErrInvalidTransition = errors.New("registration step not allowed in current state")

	ErrOTPInvalidFormat    = errors.New("otp code must be 6 digits")
	ErrOTPInvalid          = errors.New("otp code is invalid")
	ErrOTPExpired          = errors.New("otp code expired")
	ErrOTPAttemptsExceeded = errors.New("otp verification attempts exceeded")
	ErrOTPResendTooSoon    = errors.New("otp resend not yet available")

	ErrAccountLocked = errors.New("account temporarily locked")
	ErrLoginDelayed  = errors.New("login temporarily delayed")

	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidAmount    = errors.New("payment amount must be positive")
	ErrCarrierRequired  = errors.New("payment requires a mobile-money carrier")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ValidationError is a local input failure detected before any remote call.
// Policy names the password preset that produced Violations, if any.
type ValidationError struct {
	Field      string
	Policy     string
	Violations []PasswordViolation
	Err        error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps a sentinel with the offending field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// Identity provider error codes.
const (
	AuthWrongPassword        = "auth/wrong-password"
	AuthUserNotFound         = "auth/user-not-found"
	AuthTooManyRequests      = "auth/too-many-requests"
	AuthNetworkFailed        = "auth/network-request-failed"
	AuthEmailAlreadyInUse    = "auth/email-already-in-use"
	AuthPhoneAlreadyExists   = "auth/phone-already-exists"
	AuthWeakPassword         = "auth/weak-password"
	AuthInvalidActionCode    = "auth/invalid-action-code"
	AuthExpiredActionCode    = "auth/expired-action-code"
	AuthRequiresRecentLogin  = "auth/requires-recent-login"
	AuthInvalidCredential    = "auth/invalid-credential"
	AuthInternalError        = "auth/internal-error"
	AuthInvalidPhoneNumber   = "auth/invalid-phone-number"
	AuthInvalidVerification  = "auth/invalid-verification-code"
	AuthVerificationRequired = "auth/verification-required"
)

// AuthError is a provider-coded failure returned by the identity collaborator.
type AuthError struct {
	Code string
	Err  error
}

// NewAuthError builds an AuthError for the given provider code.
func NewAuthError(code string, cause error) *AuthError {
	return &AuthError{Code: code, Err: cause}
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any *AuthError carrying the same code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// AuthErrorCode extracts the provider code, or "" when err is not an AuthError.
func AuthErrorCode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// ThrottleError reports lockout or soft delay from the login tracker.
type ThrottleError struct {
	Locked            bool
	RetryAfter        time.Duration
	RemainingAttempts int
}

func (e *ThrottleError) Error() string {
	if e.Locked {
		return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("login delayed, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *ThrottleError) Unwrap() error {
	if e.Locked {
		return ErrAccountLocked
	}
	return ErrLoginDelayed
}

// SequencingError reports a later registration step failing after an earlier one
// succeeded. The draft is kept so the step can be re-initiated explicitly.
type SequencingError struct {
	Step    string
	DraftID string
	Err     error
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("registration %s failed after verification (draft %s): %v", e.Step, e.DraftID, e.Err)
}

func (e *SequencingError) Unwrap() error { return e.Err }
