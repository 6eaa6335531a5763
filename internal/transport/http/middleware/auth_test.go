package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type tokenMap map[string]string

func (m tokenMap) ParseAccessToken(token string) (string, error) {
	if id, ok := m[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Correlation())
	r.GET("/me", RequireAuth(tokenMap{"good": "u1"}), func(c *gin.Context) {
		id, _ := GetAuthenticatedUserID(c)
		c.String(http.StatusOK, id)
	})

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, ""},
		{"Basic good", http.StatusUnauthorized, ""},
		{"Bearer ", http.StatusUnauthorized, ""},
		{"Bearer bad", http.StatusUnauthorized, ""},
		{"bearer good", http.StatusOK, "u1"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)

		if w.Code != tc.status {
			t.Fatalf("%q: status %d, want %d", tc.header, w.Code, tc.status)
		}
		if tc.body != "" && w.Body.String() != tc.body {
			t.Fatalf("%q: body %q, want %q", tc.header, w.Body.String(), tc.body)
		}
	}
}

func TestRequireAuthWithoutParser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
