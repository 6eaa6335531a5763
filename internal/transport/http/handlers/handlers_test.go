package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

func newTestResponder(t *testing.T) *Responder {
	t.Helper()
	catalog, err := i18n.New("fr")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return NewResponder(catalog, security.NewPasswordEvaluator(), zaptest.NewLogger(t))
}

func newTestPlan(t *testing.T) *numbering.Plan {
	t.Helper()
	plan, err := numbering.Default()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return plan
}

func newTestEngine(respond *Responder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Language(respond.catalog))
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestResponder_MapsTypedErrors(t *testing.T) {
	respond := newTestResponder(t)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryAfter string
	}{
		{"locked", &domain.ThrottleError{Locked: true, RetryAfter: 14*time.Minute + 10*time.Second}, http.StatusLocked, i18n.KeyAccountLocked, "850"},
		{"delayed", &domain.ThrottleError{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests, i18n.KeyLoginDelayed, "2"},
		{"sequencing", &domain.SequencingError{Step: "create_account", DraftID: "d1", Err: errors.New("boom")}, http.StatusBadGateway, i18n.KeyAccountCreation, ""},
		{"phone exists", domain.NewValidationError("phone", domain.ErrPhoneAlreadyExists), http.StatusConflict, i18n.KeyPhoneAlreadyExists, ""},
		{"draft expired", domain.ErrDraftExpired, http.StatusGone, i18n.KeyDraftExpired, ""},
		{"wrong password", domain.NewAuthError(domain.AuthWrongPassword, nil), http.StatusUnauthorized, domain.AuthWrongPassword, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, i18n.KeyInternal, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine(respond)
			r.GET("/", func(c *gin.Context) { respond.RespondError(c, tc.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tc.wantCode {
				t.Fatalf("code = %q, want %q", got, tc.wantCode)
			}
			if got := w.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Fatalf("Retry-After = %q, want %q", got, tc.retryAfter)
			}
		})
	}
}

func TestResponder_LocalizesPolicyViolations(t *testing.T) {
	respond := newTestResponder(t)
	r := newTestEngine(respond)
	r.GET("/", func(c *gin.Context) {
		err := &domain.ValidationError{
			Field:      "password",
			Err:        domain.ErrPasswordPolicy,
			Policy:     domain.PasswordPolicyChange,
			Violations: []domain.PasswordViolation{{Rule: domain.RuleMinLength}},
		}
		respond.RespondError(c, err)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "at least 8 characters") {
		t.Fatalf("expected change policy length in message, got %s", w.Body.String())
	}
}

func TestPhoneHandler_Normalize(t *testing.T) {
	respond := newTestResponder(t)
	h := NewPhoneHandler(newTestPlan(t), "CD", respond)
	r := newTestEngine(respond)
	h.RegisterRoutes(r.Group(""))

	cases := []struct {
		body      string
		status    int
		valid     bool
		canonical string
		code      string
	}{
		{`{"phone":"081 234 5678"}`, http.StatusOK, true, "243812345678", ""},
		{`{"phone":"+243991234567","country_iso":"cd"}`, http.StatusOK, true, "243991234567", ""},
		{`{"phone":"0950000000"}`, http.StatusOK, false, "243950000000", i18n.KeyUnknownCarrier},
		{`{"phone":"0812"}`, http.StatusOK, false, "", i18n.KeyInvalidPhone},
		{`{"phone":"0812345678","country_iso":"XX"}`, http.StatusBadRequest, false, "", ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/phone/normalize", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.body, w.Code, tc.status)
		}
		if tc.status != http.StatusOK {
			continue
		}
		var resp PhoneNormalizeResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Valid != tc.valid || resp.Code != tc.code {
			t.Fatalf("%s: got %+v", tc.body, resp)
		}
		if tc.canonical != "" && resp.Phone.Canonical != tc.canonical {
			t.Fatalf("%s: canonical %q, want %q", tc.body, resp.Phone.Canonical, tc.canonical)
		}
	}
}

func TestPasswordHandler_EvaluateReportsMismatch(t *testing.T) {
	respond := newTestResponder(t)
	h := NewPasswordHandler(nil, security.NewPasswordEvaluator(), newTestPlan(t), "CD", respond)
	r := newTestEngine(respond)
	h.RegisterRoutes(r.Group("/password"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/password/evaluate",
		strings.NewReader(`{"password":"Mbuji2024","confirm_password":"Mbuji2025","phone":"0812345678"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp PasswordEvaluateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid || resp.Matches == nil || *resp.Matches {
		t.Fatalf("mismatched confirmation must be reported, got %+v", resp)
	}
	if len(resp.Violations) != 0 {
		t.Fatalf("password itself satisfies the policy, got %+v", resp.Violations)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/password/evaluate", strings.NewReader(`{"password":"x","policy":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown policy: expected 400, got %d", w.Code)
	}
}

type stubGateway struct{}

func (stubGateway) Initiate(_ context.Context, req domain.GatewayPaymentRequest) (domain.GatewayPaymentResponse, error) {
	return domain.GatewayPaymentResponse{TransactionID: "tx-1", Message: "confirm on your phone"}, nil
}

type memoryPayments struct {
	mu   sync.Mutex
	rows map[string]domain.Payment
}

func (m *memoryPayments) Create(_ context.Context, p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.TransactionID] = p
	return nil
}

func (m *memoryPayments) Get(_ context.Context, id string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (m *memoryPayments) UpdateStatus(_ context.Context, id string, status domain.PaymentStatus, message string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.Status.Terminal() {
		return false, nil
	}
	p.Status, p.Message, p.UpdatedAt = status, message, at
	m.rows[id] = p
	return true, nil
}

func newPaymentEngine(t *testing.T, secret string) (*gin.Engine, *memoryPayments) {
	t.Helper()
	respond := newTestResponder(t)
	repo := &memoryPayments{rows: map[string]domain.Payment{}}
	svc := usecase.NewPaymentService(newTestPlan(t), stubGateway{}, repo, nil, nil, nil, config.PaymentSettings{}, "CD")
	h := NewPaymentHandler(svc, secret, respond, WithStreamTimeout(time.Second))

	r := newTestEngine(respond)
	protected := r.Group("/payments")
	protected.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, c.GetHeader("X-Test-User"))
		c.Next()
	})
	h.RegisterProtectedRoutes(protected)
	h.RegisterWebhookRoutes(r.Group("/webhooks"))
	return r, repo
}

func TestPaymentHandler_InitiateAndWebhook(t *testing.T) {
	r, repo := newPaymentEngine(t, "shh")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":"12.5","phone":"0991234567"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "u1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var payload PaymentPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Carrier != domain.CarrierAirtel || payload.Amount != "12.50" || payload.Currency != "USD" {
		t.Fatalf("unexpected payment %+v", payload)
	}

	body := []byte(`{"transaction_id":"tx-1","status":"success"}`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(body)))
	req.Header.Set(SignatureHeader, "deadbeef")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(body)))
	req.Header.Set(SignatureHeader, security.SignPayload("shh", body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("signed webhook: expected 204, got %d (%s)", w.Code, w.Body.String())
	}
	if got, _ := repo.Get(context.Background(), "tx-1"); got.Status != domain.PaymentSuccess {
		t.Fatalf("status not applied: %+v", got)
	}
}

// streamRecorder satisfies http.CloseNotifier, which gin's Stream needs.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestPaymentHandler_EventsStreamsTerminalStatus(t *testing.T) {
	r, repo := newPaymentEngine(t, "shh")
	now := time.Now().UTC()
	repo.rows["tx-9"] = domain.Payment{TransactionID: "tx-9", UserID: "u1", Status: domain.PaymentFailed, Message: "declined", UpdatedAt: now}

	stream := newStreamRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payments/tx-9/events", nil)
	req.Header.Set("X-Test-User", "u1")
	r.ServeHTTP(stream, req)

	if body := stream.Body.String(); !strings.Contains(body, "event:status") || !strings.Contains(body, "FAILED") {
		t.Fatalf("expected a single status event, got %q", body)
	}

	w := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/payments/tx-9/events", nil)
	req.Header.Set("X-Test-User", "someone-else")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign user: expected 404, got %d", w.Code)
	}
}
