package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/paymentgw"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and message key.
type ErrorCase struct {
	Err    error
	Status int
	Code   string
}

// domainCases is consulted after the typed errors; order matters where
// sentinels wrap each other.
var domainCases = []ErrorCase{
	{Err: domain.ErrPhoneAlreadyExists, Status: http.StatusConflict, Code: i18n.KeyPhoneAlreadyExists},
	{Err: domain.ErrInvalidPhoneFormat, Status: http.StatusBadRequest, Code: i18n.KeyInvalidPhone},
	{Err: domain.ErrUnknownCarrier, Status: http.StatusBadRequest, Code: i18n.KeyUnknownCarrier},
	{Err: domain.ErrUnsupportedCountry, Status: http.StatusBadRequest, Code: i18n.KeyUnsupportedCountry},
	{Err: domain.ErrTermsNotAccepted, Status: http.StatusBadRequest, Code: i18n.KeyTermsNotAccepted},
	{Err: domain.ErrDraftNotFound, Status: http.StatusNotFound, Code: i18n.KeyDraftNotFound},
	{Err: domain.ErrDraftExpired, Status: http.StatusGone, Code: i18n.KeyDraftExpired},
	{Err: domain.ErrInvalidTransition, Status: http.StatusConflict, Code: i18n.KeyInvalidTransition},
	{Err: domain.ErrOTPInvalidFormat, Status: http.StatusBadRequest, Code: i18n.KeyOTPInvalidFormat},
	{Err: domain.ErrOTPInvalid, Status: http.StatusBadRequest, Code: i18n.KeyOTPInvalid},
	{Err: domain.ErrOTPExpired, Status: http.StatusGone, Code: i18n.KeyOTPExpired},
	{Err: domain.ErrOTPAttemptsExceeded, Status: http.StatusTooManyRequests, Code: i18n.KeyOTPAttemptsExceeded},
	{Err: domain.ErrPaymentNotFound, Status: http.StatusNotFound, Code: i18n.KeyPaymentNotFound},
	{Err: domain.ErrInvalidAmount, Status: http.StatusBadRequest, Code: i18n.KeyInvalidAmount},
	{Err: domain.ErrCarrierRequired, Status: http.StatusBadRequest, Code: i18n.KeyCarrierRequired},
	{Err: domain.ErrInvalidSignature, Status: http.StatusUnauthorized, Code: i18n.KeyInvalidSignature},
	{Err: usecase.ErrUnsupportedCurrency, Status: http.StatusBadRequest, Code: i18n.KeyUnsupportedCurrency},
	{Err: paymentgw.ErrGateway, Status: http.StatusBadGateway, Code: i18n.KeyPaymentGateway},
}

// authStatus maps identity provider codes onto HTTP statuses.
var authStatus = map[string]int{
	domain.AuthWrongPassword:        http.StatusUnauthorized,
	domain.AuthUserNotFound:         http.StatusUnauthorized,
	domain.AuthInvalidCredential:    http.StatusUnauthorized,
	domain.AuthRequiresRecentLogin:  http.StatusUnauthorized,
	domain.AuthEmailAlreadyInUse:    http.StatusConflict,
	domain.AuthPhoneAlreadyExists:   http.StatusConflict,
	domain.AuthTooManyRequests:      http.StatusTooManyRequests,
	domain.AuthNetworkFailed:        http.StatusServiceUnavailable,
	domain.AuthWeakPassword:         http.StatusUnprocessableEntity,
	domain.AuthInvalidActionCode:    http.StatusBadRequest,
	domain.AuthExpiredActionCode:    http.StatusBadRequest,
	domain.AuthInvalidPhoneNumber:   http.StatusBadRequest,
	domain.AuthInvalidVerification:  http.StatusBadRequest,
	domain.AuthVerificationRequired: http.StatusForbidden,
}

// PolicyLookup exposes password presets so min-length messages can be rendered.
type PolicyLookup interface {
	Policy(name string) (domain.PasswordPolicy, bool)
}

// Responder renders localized success and error payloads.
type Responder struct {
	catalog  *i18n.Catalog
	policies PolicyLookup
	log      *zap.Logger
}

// NewResponder builds a Responder. policies may be nil.
func NewResponder(catalog *i18n.Catalog, policies PolicyLookup, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{catalog: catalog, policies: policies, log: log}
}

func (r *Responder) lang(c *gin.Context) language.Tag {
	if tag, ok := middleware.GetLanguage(c); ok {
		return tag
	}
	if r.catalog != nil {
		return r.catalog.Fallback()
	}
	return language.French
}

// Text localizes a message key for the request.
func (r *Responder) Text(c *gin.Context, key string, args ...any) string {
	if r == nil || r.catalog == nil {
		return key
	}
	return r.catalog.Text(r.lang(c), key, args...)
}

// AuthText localizes an identity provider code.
func (r *Responder) AuthText(c *gin.Context, code string) string {
	if r == nil || r.catalog == nil {
		return code
	}
	return r.catalog.AuthMessage(r.lang(c), code)
}

// Violations localizes password violations for the named policy.
func (r *Responder) Violations(c *gin.Context, policy string, violations []domain.PasswordViolation) []domain.PasswordViolation {
	if r == nil || r.catalog == nil || len(violations) == 0 {
		return violations
	}
	minLength := 0
	if r.policies != nil {
		if p, ok := r.policies.Policy(policy); ok {
			minLength = p.MinLength
		}
	}
	return r.catalog.Violations(r.lang(c), violations, minLength)
}

// Fail writes an error payload for code.
func (r *Responder) Fail(c *gin.Context, status int, code string, args ...any) {
	c.JSON(status, NewErrorResponse(c, code, r.Text(c, code, args...)))
}

// RespondWithMappedError resolves err against cases, then the domain error
// taxonomy, and falls back to fallbackStatus/fallbackCode.
func (r *Responder) RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackCode string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			r.Fail(c, cs.Status, cs.Code)
			return
		}
	}

	if r.respondTyped(c, err) {
		return
	}

	for _, cs := range domainCases {
		if errors.Is(err, cs.Err) {
			r.Fail(c, cs.Status, cs.Code)
			return
		}
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		resp := NewErrorResponse(c, i18n.KeyInvalidPayload, r.Text(c, i18n.KeyInvalidPayload))
		resp.Details = map[string]string{"field": vErr.Field, "reason": vErr.Err.Error()}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	if fallbackStatus >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	r.Fail(c, fallbackStatus, fallbackCode)
}

// RespondError maps err with the shared taxonomy only.
func (r *Responder) RespondError(c *gin.Context, err error) {
	r.RespondWithMappedError(c, err, nil, http.StatusInternalServerError, i18n.KeyInternal)
}

func (r *Responder) respondTyped(c *gin.Context, err error) bool {
	var throttle *domain.ThrottleError
	if errors.As(err, &throttle) {
		seconds := ceilSeconds(throttle.RetryAfter)
		c.Header("Retry-After", strconv.Itoa(seconds))
		details := ThrottleDetails{RetryAfter: seconds, RemainingAttempts: throttle.RemainingAttempts, Locked: throttle.Locked}
		if throttle.Locked {
			minutes := int(math.Ceil(throttle.RetryAfter.Minutes()))
			resp := NewErrorResponse(c, i18n.KeyAccountLocked, r.Text(c, i18n.KeyAccountLocked, minutes))
			resp.Details = details
			c.JSON(http.StatusLocked, resp)
			return true
		}
		resp := NewErrorResponse(c, i18n.KeyLoginDelayed, r.Text(c, i18n.KeyLoginDelayed, seconds))
		resp.Details = details
		c.JSON(http.StatusTooManyRequests, resp)
		return true
	}

	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(ceilSeconds(rateErr.RetryAfter)))
		r.Fail(c, http.StatusTooManyRequests, i18n.KeyRateLimited)
		return true
	}

	var seqErr *domain.SequencingError
	if errors.As(err, &seqErr) {
		resp := NewErrorResponse(c, i18n.KeyAccountCreation, r.Text(c, i18n.KeyAccountCreation))
		resp.Details = SequencingDetails{Step: seqErr.Step, DraftID: seqErr.DraftID, Retryable: true}
		c.JSON(http.StatusBadGateway, resp)
		return true
	}

	var vErr *domain.ValidationError
	if errors.As(err, &vErr) && len(vErr.Violations) > 0 {
		code := i18n.KeyPasswordPolicy
		if errors.Is(vErr.Err, domain.ErrPasswordMismatch) {
			code = string(domain.RuleMismatch)
		}
		resp := NewErrorResponse(c, code, r.Text(c, code))
		resp.Details = ViolationDetails{Field: vErr.Field, Violations: r.Violations(c, vErr.Policy, vErr.Violations)}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return true
	}

	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		status, ok := authStatus[authErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		message := r.AuthText(c, authErr.Code)
		if status >= http.StatusInternalServerError {
			logger.WithContext(c.Request.Context()).Warn("identity provider failure", zap.String("code", authErr.Code), zap.Error(err))
		}
		c.JSON(status, NewErrorResponse(c, authErr.Code, message))
		return true
	}
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
