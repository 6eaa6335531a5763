package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// RegistrationHandler drives the registration draft through its steps.
type RegistrationHandler struct {
	service *usecase.RegistrationService
	respond *Responder
	now     func() time.Time
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(service *usecase.RegistrationService, respond *Responder) *RegistrationHandler {
	return &RegistrationHandler{service: service, respond: respond, now: time.Now}
}

// RegisterRoutes binds registration routes. phoneCheck guards the phone
// check and draft creation, otp guards code dispatch and verification.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, phoneCheck, otp []gin.HandlerFunc) {
	r.POST("/phone-check", with(phoneCheck, h.CheckPhone)...)
	r.POST("", with(phoneCheck, h.Begin)...)
	r.GET("/:id", h.Get)
	r.DELETE("/:id", h.Abandon)
	r.POST("/:id/credentials", h.SubmitCredentials)
	r.POST("/:id/otp", with(otp, h.SendOTP)...)
	r.POST("/:id/otp/verify", with(otp, h.VerifyOTP)...)
	r.POST("/:id/complete", h.Complete)
}

func with(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	chain = append(chain, middlewares...)
	return append(chain, handler)
}

// CheckPhone reports whether the number can be used for a new account.
func (h *RegistrationHandler) CheckPhone(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	availability, err := h.service.CheckPhone(c.Request.Context(), req.Phone, req.CountryISO)
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PhoneCheckResponse{Phone: newPhonePayload(availability.Phone), Available: availability.Available})
}

// Begin opens a draft for an available phone number.
func (h *RegistrationHandler) Begin(c *gin.Context) {
	var req RegistrationBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	draft, err := h.service.Begin(c.Request.Context(), domain.RegistrationProfile{
		Phone:      req.Phone,
		CountryISO: req.CountryISO,
		City:       req.City,
		Name:       req.Name,
	})
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDraftResponse(draft))
}

// Get returns the draft so a client can resume after a restart.
func (h *RegistrationHandler) Get(c *gin.Context) {
	draft, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

// Abandon discards the draft.
func (h *RegistrationHandler) Abandon(c *gin.Context) {
	if err := h.service.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: h.respond.Text(c, i18n.KeyRegistrationAbandon)})
}

// SubmitCredentials stores the hashed password once it satisfies the
// registration policy and the terms are accepted.
func (h *RegistrationHandler) SubmitCredentials(c *gin.Context) {
	var req RegistrationCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	draft, result, err := h.service.SubmitCredentials(c.Request.Context(), c.Param("id"), domain.RegistrationCredentials{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AcceptTerms:     req.AcceptTerms,
	})
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}

	resp := newDraftResponse(draft)
	strength := result.Strength
	resp.Strength = &strength
	resp.Altered = result.Altered
	c.JSON(http.StatusOK, resp)
}

// SendOTP sends or resends the verification code. A resend inside the
// cooldown is a 429 carrying the remaining wait.
func (h *RegistrationHandler) SendOTP(c *gin.Context) {
	dispatch, err := h.service.SendOTP(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrOTPResendTooSoon) {
			seconds := ceilSeconds(dispatch.ResendAvailableAt.Sub(h.now()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			resp := NewErrorResponse(c, i18n.KeyOTPResendTooSoon, h.respond.Text(c, i18n.KeyOTPResendTooSoon, seconds))
			resp.Details = ThrottleDetails{RetryAfter: seconds}
			c.JSON(http.StatusTooManyRequests, resp)
			return
		}
		h.respond.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, OTPDispatchResponse{
		SentAt:            dispatch.SentAt,
		ExpiresAt:         dispatch.ExpiresAt,
		ResendAvailableAt: dispatch.ResendAvailableAt,
		ResendInSeconds:   ceilSeconds(dispatch.ResendAvailableAt.Sub(h.now())),
	})
}

// VerifyOTP checks the code and creates the account.
func (h *RegistrationHandler) VerifyOTP(c *gin.Context) {
	var req RegistrationVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	result, err := h.service.VerifyOTP(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Code))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	h.respondCreated(c, result)
}

// Complete retries account creation for a verified draft.
func (h *RegistrationHandler) Complete(c *gin.Context) {
	result, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	h.respondCreated(c, result)
}

func (h *RegistrationHandler) respondCreated(c *gin.Context, result domain.RegistrationResult) {
	c.JSON(http.StatusCreated, AuthLoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        newUserSummary(result.User),
	})
}
