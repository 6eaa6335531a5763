package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: middleware.GetTraceID(c),
	}
}

// ThrottleDetails accompanies 423/429 login responses.
type ThrottleDetails struct {
	Locked            bool `json:"locked"`
	RetryAfter        int  `json:"retry_after"`
	RemainingAttempts int  `json:"remaining_attempts,omitempty"`
}

// SequencingDetails tells the client which account-creation step to retry.
type SequencingDetails struct {
	Step      string `json:"step"`
	DraftID   string `json:"draft_id"`
	Retryable bool   `json:"retryable"`
}

// ViolationDetails lists localized password rule violations.
type ViolationDetails struct {
	Field      string                     `json:"field"`
	Violations []domain.PasswordViolation `json:"violations"`
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// CountryPayload is one entry of the country picker.
type CountryPayload struct {
	ISO              string `json:"iso"`
	Name             string `json:"name"`
	DialCode         string `json:"dial_code"`
	Flag             string `json:"flag"`
	SubscriberLength int    `json:"subscriber_length"`
}

// CountryListResponse wraps the picker list with the numbering plan version.
type CountryListResponse struct {
	Version   string           `json:"version"`
	Countries []CountryPayload `json:"countries"`
}

// PhoneRequest carries a raw phone number and the selected country.
type PhoneRequest struct {
	Phone      string `json:"phone" binding:"required"`
	CountryISO string `json:"country_iso"`
}

// PhonePayload describes a normalized number.
type PhonePayload struct {
	CountryISO string         `json:"country_iso"`
	Subscriber string         `json:"subscriber"`
	Canonical  string         `json:"canonical"`
	E164       string         `json:"e164"`
	Carrier    domain.Carrier `json:"carrier,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// PhoneNormalizeResponse reports normalization and validation together.
type PhoneNormalizeResponse struct {
	Phone PhonePayload `json:"phone"`
	Valid bool         `json:"valid"`
	Error string       `json:"error,omitempty"`
	Code  string       `json:"code,omitempty"`
}

// PasswordEvaluateRequest asks for a policy evaluation.
type PasswordEvaluateRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Policy          string `json:"policy"`
	Phone           string `json:"phone"`
	CountryISO      string `json:"country_iso"`
	Name            string `json:"name"`
}

// PasswordEvaluateResponse is informational; invalid passwords still return 200.
type PasswordEvaluateResponse struct {
	Valid      bool                       `json:"valid"`
	Violations []domain.PasswordViolation `json:"violations"`
	Strength   int                        `json:"strength"`
	Altered    bool                       `json:"altered"`
	Matches    *bool                      `json:"matches,omitempty"`
}

// AuthLoginRequest defines the payload for the login endpoint.
type AuthLoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	CountryISO string `json:"country_iso"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID            string `json:"id"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	City          string `json:"city,omitempty"`
	CountryISO    string `json:"country_iso"`
	PhoneVerified bool   `json:"phone_verified"`
}

// AuthLoginResponse describes the response returned for a successful login.
type AuthLoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserSummary `json:"user"`
}

// SecurityStatusResponse exposes the login tracker state for an identifier.
type SecurityStatusResponse struct {
	State             domain.LockoutState `json:"state"`
	Locked            bool                `json:"locked"`
	FailureCount      int                 `json:"failure_count"`
	RemainingAttempts int                 `json:"remaining_attempts"`
	RemainingLockTime int                 `json:"remaining_lock_seconds"`
	Delay             bool                `json:"delay"`
	DelaySeconds      int                 `json:"delay_seconds"`
	Message           string              `json:"message,omitempty"`
}

// PasswordResetRequest starts a reset by email.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest completes a reset.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// PasswordChangeRequest changes the signed-in user's password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// PasswordChangeResponse confirms a password change.
type PasswordChangeResponse struct {
	Message  string `json:"message"`
	Strength int    `json:"strength"`
	Altered  bool   `json:"altered"`
}

// PhoneCheckResponse reports registration availability.
type PhoneCheckResponse struct {
	Phone     PhonePayload `json:"phone"`
	Available bool         `json:"available"`
}

// RegistrationBeginRequest is the first registration step.
type RegistrationBeginRequest struct {
	Phone      string `json:"phone" binding:"required"`
	CountryISO string `json:"country_iso"`
	City       string `json:"city" binding:"required"`
	Name       string `json:"name"`
}

// RegistrationCredentialsRequest is the second registration step.
type RegistrationCredentialsRequest struct {
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	AcceptTerms     bool   `json:"accept_terms"`
}

// RegistrationVerifyRequest holds the verification payload.
type RegistrationVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// RegistrationDraftResponse is the client view of a draft, without secrets.
type RegistrationDraftResponse struct {
	ID                string                   `json:"id"`
	State             domain.RegistrationState `json:"state"`
	Phone             string                   `json:"phone"`
	CountryISO        string                   `json:"country_iso"`
	Carrier           domain.Carrier           `json:"carrier,omitempty"`
	City              string                   `json:"city"`
	Name              string                   `json:"name,omitempty"`
	ResendAvailableAt *time.Time               `json:"resend_available_at,omitempty"`
	Verified          bool                     `json:"verified"`
	LastError         string                   `json:"last_error,omitempty"`
	ExpiresAt         time.Time                `json:"expires_at"`
	Strength          *int                     `json:"strength,omitempty"`
	Altered           bool                     `json:"altered,omitempty"`
}

// OTPDispatchResponse describes a sent code.
type OTPDispatchResponse struct {
	SentAt            time.Time `json:"sent_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
	ResendInSeconds   int       `json:"resend_in_seconds"`
}

// PaymentInitiateRequest starts a mobile-money payment.
type PaymentInitiateRequest struct {
	Amount     string `json:"amount" binding:"required"`
	Currency   string `json:"currency"`
	Phone      string `json:"phone" binding:"required"`
	CountryISO string `json:"country_iso"`
}

// PaymentPayload is the client view of a payment.
type PaymentPayload struct {
	TransactionID string               `json:"transaction_id"`
	Amount        string               `json:"amount"`
	Currency      string               `json:"currency"`
	Carrier       domain.Carrier       `json:"carrier"`
	Status        domain.PaymentStatus `json:"status"`
	Message       string               `json:"message,omitempty"`
	Instructions  string               `json:"instructions,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// ProfileUpdateRequest carries profile fields to merge.
type ProfileUpdateRequest struct {
	Fields map[string]any `json:"fields" binding:"required"`
}

// ProfileResponse returns the user and profile document.
type ProfileResponse struct {
	User    UserSummary    `json:"user"`
	Profile map[string]any `json:"profile"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:            user.ID,
		Phone:         user.Phone,
		Email:         user.Email,
		Name:          user.Name,
		City:          user.City,
		CountryISO:    user.CountryISO,
		PhoneVerified: user.PhoneVerified,
	}
}

func newPhonePayload(details domain.PhoneDetails) PhonePayload {
	return PhonePayload{
		CountryISO: details.Number.CountryISO,
		Subscriber: details.Number.Subscriber,
		Canonical:  details.Number.Canonical(),
		E164:       details.Number.E164(),
		Carrier:    details.Carrier,
		Truncated:  details.Number.Truncated,
	}
}

func newDraftResponse(draft domain.RegistrationDraft) RegistrationDraftResponse {
	draft = draft.Redacted()
	return RegistrationDraftResponse{
		ID:                draft.ID,
		State:             draft.State,
		Phone:             draft.Phone,
		CountryISO:        draft.CountryISO,
		Carrier:           draft.Carrier,
		City:              draft.City,
		Name:              draft.Name,
		ResendAvailableAt: draft.ResendAvailableAt,
		Verified:          draft.State == domain.RegistrationOTPVerified || draft.State == domain.RegistrationCreatingAccount,
		LastError:         draft.LastError,
		ExpiresAt:         draft.ExpiresAt,
	}
}

func newPaymentPayload(p domain.Payment) PaymentPayload {
	return PaymentPayload{
		TransactionID: p.TransactionID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Carrier:       p.Carrier,
		Status:        p.Status,
		Message:       p.Message,
		Instructions:  p.Instructions,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
