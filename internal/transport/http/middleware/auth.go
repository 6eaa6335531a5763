package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
	Details any    `json:"details,omitempty"`
}

func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(c),
	}
}

// AccessTokenParser resolves a bearer token to the user id it was issued for.
type AccessTokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// RequireAuth validates the Authorization header and stores the user id.
func RequireAuth(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				newErrorResponse(c, "service_unavailable", "authentication unavailable"))
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "missing access token"))
			return
		}

		userID, err := tokens.ParseAccessToken(token)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "unauthorized", "invalid access token"))
			return
		}

		c.Set(UserIDKey, userID)
		GetRequestInfo(c).UserID = userID

		c.Next()
	}
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}
