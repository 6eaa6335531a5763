package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler publishes the verification keys so other services can check
// access tokens offline.
type JWKSHandler struct {
	manager *security.JWTManager
	respond *Responder
}

func NewJWKSHandler(manager *security.JWTManager, respond *Responder) *JWKSHandler {
	return &JWKSHandler{manager: manager, respond: respond}
}

// Keys serves /.well-known/jwks.json.
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h.manager == nil {
		h.respond.Fail(c, http.StatusServiceUnavailable, i18n.KeyServiceUnavailable)
		return
	}

	payload, err := h.manager.JWKS()
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}

	etag := `"` + security.HashToken(string(payload))[:16] + `"`
	c.Header("Cache-Control", jwksCacheControl)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}
