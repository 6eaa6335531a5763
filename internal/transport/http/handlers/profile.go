package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

// ProfileHandler serves the signed-in user's account and profile document.
type ProfileHandler struct {
	users   *usecase.UserService
	respond *Responder
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(users *usecase.UserService, respond *Responder) *ProfileHandler {
	return &ProfileHandler{users: users, respond: respond}
}

// RegisterProtectedRoutes binds profile routes.
func (h *ProfileHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("", h.Get)
	r.PUT("", h.Update)
}

// Get returns the user with the profile document.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	user, profile, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{User: newUserSummary(user), Profile: profile.Fields})
}

// Update merges allowed fields into the profile document.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}

	user, _, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	profile, err := h.users.UpdateProfile(c.Request.Context(), userID, req.Fields)
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{User: newUserSummary(user), Profile: profile.Fields})
}
