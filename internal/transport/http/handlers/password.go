package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// PasswordHandler serves policy evaluation, password reset and password change.
type PasswordHandler struct {
	service    *usecase.PasswordResetService
	evaluator  port.PasswordEvaluator
	plan       *numbering.Plan
	defaultISO string
	respond    *Responder
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(service *usecase.PasswordResetService, evaluator port.PasswordEvaluator, plan *numbering.Plan, defaultISO string, respond *Responder) *PasswordHandler {
	if defaultISO == "" {
		defaultISO = "CD"
	}
	return &PasswordHandler{service: service, evaluator: evaluator, plan: plan, defaultISO: defaultISO, respond: respond}
}

// RegisterRoutes binds the public password routes. The reset request accepts
// extra middleware such as a rate limiter.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, resetMiddlewares ...gin.HandlerFunc) {
	r.POST("/evaluate", h.Evaluate)

	chain := append([]gin.HandlerFunc{}, resetMiddlewares...)
	chain = append(chain, h.RequestReset)
	r.POST("/reset", chain...)
	r.POST("/reset/confirm", h.ConfirmReset)
}

// RegisterProtectedRoutes binds routes that need an authenticated user.
func (h *PasswordHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/change", h.Change)
}

// Evaluate reports every unmet rule of the requested policy. The answer is
// informational, so an invalid password is still a 200.
func (h *PasswordHandler) Evaluate(c *gin.Context) {
	var req PasswordEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	policy := strings.TrimSpace(req.Policy)
	if policy == "" {
		policy = domain.PasswordPolicyRegister
	}

	result, err := h.evaluator.Evaluate(req.Password, policy, h.hints(req))
	if err != nil {
		if errors.Is(err, security.ErrUnknownPasswordPolicy) {
			h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
			return
		}
		h.respond.RespondError(c, err)
		return
	}

	resp := PasswordEvaluateResponse{
		Valid:      result.Valid,
		Violations: h.respond.Violations(c, policy, result.Violations),
		Strength:   result.Strength,
		Altered:    result.Altered,
	}
	if resp.Violations == nil {
		resp.Violations = []domain.PasswordViolation{}
	}
	if req.ConfirmPassword != "" {
		matches := h.evaluator.PasswordsMatch(req.Password, req.ConfirmPassword)
		resp.Matches = &matches
		if !matches {
			resp.Valid = false
		}
	}
	c.JSON(http.StatusOK, resp)
}

// hints resolves the phone when it parses; an unparsable number simply gives
// no phone hint.
func (h *PasswordHandler) hints(req PasswordEvaluateRequest) domain.PasswordHints {
	hints := domain.PasswordHints{Name: strings.TrimSpace(req.Name)}
	if strings.TrimSpace(req.Phone) == "" || h.plan == nil {
		return hints
	}
	iso := strings.ToUpper(strings.TrimSpace(req.CountryISO))
	if iso == "" {
		iso = h.defaultISO
	}
	if number, err := h.plan.Normalize(req.Phone, iso); err == nil {
		hints.Phone = number.Canonical()
		hints.Subscriber = number.Subscriber
	}
	return hints
}

// RequestReset sends a reset email.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.respond.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailRequired, Status: http.StatusBadRequest, Code: i18n.KeyInvalidPayload},
		}, http.StatusInternalServerError, i18n.KeyInternal)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: h.respond.Text(c, i18n.KeyPasswordResetSent)})
}

// ConfirmReset applies the new password with the token from the reset email.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	_, result, err := h.service.ConfirmPasswordReset(c.Request.Context(), usecase.PasswordResetConfirmInput{
		Token:           strings.TrimSpace(req.Token),
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respond.RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenRequired, Status: http.StatusBadRequest, Code: i18n.KeyInvalidPayload},
		}, http.StatusInternalServerError, i18n.KeyInternal)
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:  h.respond.Text(c, i18n.KeyPasswordChanged),
		Strength: result.Strength,
		Altered:  result.Altered,
	})
}

// Change updates the signed-in user's password after checking the current one.
func (h *PasswordHandler) Change(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	result, err := h.service.ChangePassword(c.Request.Context(), usecase.PasswordChangeInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:  h.respond.Text(c, i18n.KeyPasswordChanged),
		Strength: result.Strength,
		Altered:  result.Altered,
	})
}
