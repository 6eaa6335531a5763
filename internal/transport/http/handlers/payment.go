package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/i18n"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/security"
	"github.com/kandyfoma/goshopperai-sub000/internal/transport/http/middleware"
	"github.com/kandyfoma/goshopperai-sub000/internal/usecase"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
	SignatureHeader = "X-Signature"

	maxWebhookBody = 64 << 10
)

// PaymentHandler initiates payments and streams their status.
type PaymentHandler struct {
	payments      *usecase.PaymentService
	respond       *Responder
	webhookSecret string
	streamTimeout time.Duration
}

// PaymentHandlerOption customises PaymentHandler.
type PaymentHandlerOption func(*PaymentHandler)

// WithStreamTimeout bounds how long a status stream stays open.
func WithStreamTimeout(d time.Duration) PaymentHandlerOption {
	return func(h *PaymentHandler) {
		if d > 0 {
			h.streamTimeout = d
		}
	}
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *usecase.PaymentService, webhookSecret string, respond *Responder, opts ...PaymentHandlerOption) *PaymentHandler {
	h := &PaymentHandler{
		payments:      payments,
		respond:       respond,
		webhookSecret: webhookSecret,
		streamTimeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterProtectedRoutes binds the authenticated payment routes.
func (h *PaymentHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("", h.Initiate)
	r.GET("/:id", h.Status)
	r.GET("/:id/events", h.Events)
}

// RegisterWebhookRoutes binds the signed status push endpoint.
func (h *PaymentHandler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/payments", h.Webhook)
}

// Initiate starts a payment routed to the carrier of the given phone.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	var req PaymentInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidAmount)
		return
	}

	payment, err := h.payments.Initiate(c.Request.Context(), domain.PaymentRequest{
		UserID:     userID,
		Amount:     amount,
		Currency:   req.Currency,
		Phone:      req.Phone,
		CountryISO: req.CountryISO,
	})
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPaymentPayload(payment))
}

// Status returns the caller's payment.
func (h *PaymentHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	payment, err := h.payments.Status(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentPayload(payment))
}

// Events streams the terminal status as a single server-sent event, then
// closes. Disconnecting early unsubscribes.
func (h *PaymentHandler) Events(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyUnauthorized)
		return
	}

	sub, err := h.payments.Subscribe(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respond.RespondError(c, err)
		return
	}
	defer h.payments.Unsubscribe(sub)

	timeout := time.NewTimer(h.streamTimeout)
	defer timeout.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case update, open := <-sub.C:
			if open {
				c.SSEvent("status", update)
			}
			return false
		case <-timeout.C:
			c.SSEvent("timeout", gin.H{"transaction_id": sub.TransactionID})
			return false
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Webhook accepts a signed status push from the payment provider.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}
	if !security.VerifyPayloadSignature(h.webhookSecret, body, c.GetHeader(SignatureHeader)) {
		logger.WithContext(c.Request.Context()).Warn("payment webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		h.respond.Fail(c, http.StatusUnauthorized, i18n.KeyInvalidSignature)
		return
	}

	var update domain.PaymentStatusUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		h.respond.Fail(c, http.StatusBadRequest, i18n.KeyInvalidPayload)
		return
	}
	update.Status = domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(string(update.Status))))

	if err := h.payments.ApplyStatus(c.Request.Context(), update); err != nil {
		h.respond.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
