package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
)

// RateLimitStore is the sliding-window store shared with the password reset limiter.
type RateLimitStore = port.RateLimitStore

// IdentifierFunc picks the subject a rule counts against. false skips the rule.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule allows Limit requests per subject in any Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
	reject RejectFunc
}

// RejectFunc writes the response for a refused request. Retry-After and the
// X-RateLimit headers are already set when it runs.
type RejectFunc func(c *gin.Context, rule string, retryAfter time.Duration)

// RateLimitDetails is the details payload of the default rejection body.
type RateLimitDetails struct {
	Rule       string `json:"rule"`
	Limit      int    `json:"limit"`
	RetryAfter int    `json:"retry_after"`
}

func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock is for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// WithRejectHandler replaces the default 429 body, typically with a localized one.
func (rl *RateLimiter) WithRejectHandler(fn RejectFunc) *RateLimiter {
	if fn != nil {
		rl.reject = fn
	}
	return rl
}

func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// ParamIdentifier counts against a path parameter, such as a draft id.
func ParamIdentifier(name string) IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		value := c.Param(name)
		return value, value != ""
	}
}

// JSONFieldIdentifier scopes a limit to a top-level string field of a JSON
// body, such as the phone number of a phone check. The body is restored for
// the handler.
func JSONFieldIdentifier(field string) IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		if c.Request.Body == nil {
			return "", false
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdentifierBody))
		_ = c.Request.Body.Close()
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return "", false
		}
		var body map[string]any
		if json.Unmarshal(raw, &body) != nil {
			return "", false
		}
		value, _ := body[field].(string)
		value = strings.ToLower(strings.TrimSpace(value))
		return value, value != ""
	}
}

const maxIdentifierBody = 16 << 10

// RateLimit enforces every applicable rule. A request is refused by the first
// rule that is exhausted; otherwise the rule with the least headroom fills the
// X-RateLimit headers. Store errors skip the rule.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *verdict
		for _, rule := range active {
			subject, ok := rule.Identifier(c)
			if !ok || subject == "" {
				continue
			}
			window, err := rl.store.Take(c.Request.Context(), rule.Name+":"+subject, rule.Limit, rule.Window, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed", zap.String("rule", rule.Name), zap.Error(err))
				continue
			}

			v := verdict{rule: rule, window: window, retryAfter: window.RetryAfter(now)}
			if !window.Allowed {
				v.writeHeaders(c)
				rl.refuse(c, v)
				return
			}
			if tightest == nil || v.tighterThan(*tightest) {
				tightest = &v
			}
		}

		if tightest != nil {
			tightest.writeHeaders(c)
		}
		c.Next()
	}
}

// verdict is one rule's answer for the current request.
type verdict struct {
	rule       RateLimitRule
	window     port.RateWindow
	retryAfter time.Duration
}

func (v verdict) remaining() int {
	if !v.window.Allowed {
		return 0
	}
	return max(v.rule.Limit-v.window.Count, 0)
}

func (v verdict) tighterThan(other verdict) bool {
	if v.remaining() != other.remaining() {
		return v.remaining() < other.remaining()
	}
	return v.window.Reset.Before(other.window.Reset)
}

func (v verdict) writeHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.rule.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining()))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.window.Reset.Unix(), 10))
	if !v.window.Allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(v.retryAfter)))
	}
}

func (rl *RateLimiter) refuse(c *gin.Context, v verdict) {
	rl.logger.Warn("rate limit exceeded",
		zap.String("rule", v.rule.Name),
		zap.String("trace_id", GetTraceID(c)),
		zap.Duration("retry_after", v.retryAfter),
	)
	if rl.reject != nil {
		rl.reject(c, v.rule.Name, v.retryAfter)
		c.Abort()
		return
	}

	resp := newErrorResponse(c, "rate_limited", "too many requests")
	resp.Details = RateLimitDetails{Rule: v.rule.Name, Limit: v.rule.Limit, RetryAfter: retrySeconds(v.retryAfter)}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
