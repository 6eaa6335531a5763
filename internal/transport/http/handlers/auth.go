package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// AuthHandler exposes sign-in and the login tracker status.
type AuthHandler struct {
	auth    *usecase.AuthService
	respond *Responder
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, respond *Responder) *AuthHandler {
	return &AuthHandler{auth: auth, respond: respond}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.Login)
	r.POST("/login", chain...)
	r.GET("/security-status", h.SecurityStatus)
}

// Login signs a user in with a phone number or email. Throttled attempts get
// 423 or 429 with Retry-After; a wrong password reports the attempts left.
func (h *AuthHandler) Login(c *gin.Context) {
	var req AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	result, status, err := h.auth.SignIn(c.Request.Context(), usecase.SignInRequest{
		Identifier: strings.TrimSpace(req.Identifier),
		Password:   req.Password,
		CountryISO: strings.TrimSpace(req.CountryISO),
		IP:         strings.TrimSpace(c.ClientIP()),
		UserAgent:  strings.TrimSpace(c.Request.UserAgent()),
	})
	if err != nil {
		if code := domain.AuthErrorCode(err); code == domain.AuthWrongPassword || code == domain.AuthUserNotFound {
			h.respondFailedCredentials(c, code, status)
			return
		}
		h.respond.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthLoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        newUserSummary(result.User),
	})
}

// respondFailedCredentials reports the provider message together with the
// refreshed tracker status, so the client can show the remaining attempts.
func (h *AuthHandler) respondFailedCredentials(c *gin.Context, code string, status domain.SecurityStatus) {
	if status.Locked {
		h.respond.RespondError(c, &domain.ThrottleError{Locked: true, RetryAfter: status.RemainingLockTime})
		return
	}

	resp := NewErrorResponse(c, code, h.respond.AuthText(c, code))
	resp.Details = SecurityStatusResponse{
		State:             status.State,
		FailureCount:      status.FailureCount,
		RemainingAttempts: status.RemainingAttempts,
		Message:           h.warning(c, status),
	}
	c.JSON(http.StatusUnauthorized, resp)
}

// SecurityStatus reports the tracker state for ?identifier=.
func (h *AuthHandler) SecurityStatus(c *gin.Context) {
	identifier := strings.TrimSpace(c.Query("identifier"))
	if identifier == "" {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	status, delay, err := h.auth.SecurityStatus(c.Request.Context(), identifier, c.Query("country_iso"))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SecurityStatusResponse{
		State:             status.State,
		Locked:            status.Locked,
		FailureCount:      status.FailureCount,
		RemainingAttempts: status.RemainingAttempts,
		RemainingLockTime: status.RemainingLockSeconds(),
		Delay:             delay.Delay,
		DelaySeconds:      delay.Seconds(),
		Message:           h.warning(c, status),
	})
}

func (h *AuthHandler) warning(c *gin.Context, status domain.SecurityStatus) string {
	switch status.State {
	case domain.LockoutLocked:
		return h.respond.Text(c, i18n.KeyAccountLocked, (status.RemainingLockSeconds()+59)/60)
	case domain.LockoutWarned:
		return h.respond.Text(c, i18n.KeyAttemptsRemaining, status.RemainingAttempts)
	}
	return ""
}
