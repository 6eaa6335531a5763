package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

type Country struct {
	ISO              string `json:"iso"`
	Name             string `json:"name"`
	DialCode         string `json:"dial_code"`
	Flag             string `json:"flag"`
	SubscriberLength int    `json:"subscriber_length"`
}

type CountryList struct {
	Version   string    `json:"version"`
	Countries []Country `json:"countries"`
}

type Phone struct {
	CountryISO string `json:"country_iso"`
	Subscriber string `json:"subscriber"`
	Canonical  string `json:"canonical"`
	E164       string `json:"e164"`
	Carrier    string `json:"carrier,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// PhoneResult is the outcome of a normalize call. Valid is false with a Code
// when the number does not pass validation.
type PhoneResult struct {
	Phone Phone  `json:"phone"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type PhoneAvailability struct {
	Phone     Phone `json:"phone"`
	Available bool  `json:"available"`
}

type User struct {
	ID            string `json:"id"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	City          string `json:"city,omitempty"`
	CountryISO    string `json:"country_iso"`
	PhoneVerified bool   `json:"phone_verified"`
}

type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

type SecurityStatus struct {
	State                string `json:"state"`
	Locked               bool   `json:"locked"`
	FailureCount         int    `json:"failure_count"`
	RemainingAttempts    int    `json:"remaining_attempts"`
	RemainingLockSeconds int    `json:"remaining_lock_seconds"`
	Delay                bool   `json:"delay"`
	DelaySeconds         int    `json:"delay_seconds"`
	Message              string `json:"message,omitempty"`
}

type Payment struct {
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Carrier       string    `json:"carrier"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	Instructions  string    `json:"instructions,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type phoneRequest struct {
	Phone      string `json:"phone"`
	CountryISO string `json:"country_iso,omitempty"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	CountryISO string `json:"country_iso,omitempty"`
}

type paymentRequest struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency,omitempty"`
	Phone      string `json:"phone"`
	CountryISO string `json:"country_iso,omitempty"`
}

// Countries lists the supported countries, primary country first.
func (c *Client) Countries(ctx context.Context) (CountryList, error) {
	var out CountryList
	err := c.get(ctx, "/countries", nil, &out)
	return out, err
}

func (c *Client) NormalizePhone(ctx context.Context, phone, countryISO string) (PhoneResult, error) {
	var out PhoneResult
	err := c.post(ctx, "/phone/normalize", phoneRequest{Phone: phone, CountryISO: countryISO}, &out)
	return out, err
}

// CheckPhone asks whether the number can still be registered.
func (c *Client) CheckPhone(ctx context.Context, phone, countryISO string) (PhoneAvailability, error) {
	var out PhoneAvailability
	err := c.post(ctx, "/registration/phone-check", phoneRequest{Phone: phone, CountryISO: countryISO}, &out)
	return out, err
}

// Login signs in by phone or email. A rejected password returns an *APIError
// whose Details hold the SecurityStatus.
func (c *Client) Login(ctx context.Context, identifier, password, countryISO string) (Session, error) {
	var out Session
	err := c.post(ctx, "/auth/login", loginRequest{Identifier: identifier, Password: password, CountryISO: countryISO}, &out)
	return out, err
}

func (c *Client) SecurityStatus(ctx context.Context, identifier, countryISO string) (SecurityStatus, error) {
	query := url.Values{"identifier": {identifier}}
	if countryISO != "" {
		query.Set("country_iso", countryISO)
	}
	var out SecurityStatus
	err := c.get(ctx, "/auth/security-status", query, &out)
	return out, err
}

// InitiatePayment starts a mobile-money charge. amount is a decimal string.
func (c *Client) InitiatePayment(ctx context.Context, amount, currency, phone, countryISO string) (Payment, error) {
	var out Payment
	err := c.post(ctx, "/payments", paymentRequest{Amount: amount, Currency: currency, Phone: phone, CountryISO: countryISO}, &out)
	return out, err
}

func (c *Client) Payment(ctx context.Context, transactionID string) (Payment, error) {
	var out Payment
	err := c.get(ctx, "/payments/"+url.PathEscape(transactionID), nil, &out)
	return out, err
}

// IsThrottled reports whether err is a lockout or delay rejection and how long
// to wait.
func IsThrottled(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	if apiErr.Status != http.StatusTooManyRequests && apiErr.Status != http.StatusLocked {
		return 0, false
	}
	return apiErr.RetryAfter, true
}
