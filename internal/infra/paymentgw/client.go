// Package paymentgw calls the hosted mobile-money payment-initiation endpoint.
package paymentgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/httpclient"
)

// ErrGateway wraps any non-success reply from the gateway.
var ErrGateway = errors.New("payment gateway error")

const initiatePath = "/payments/initiate"

type Client struct {
	baseURL string
	apiKey  string
	c       *http.Client
}

type initiateRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PhoneNumber string          `json:"phoneNumber"`
	UserID      string          `json:"userId"`
	Currency    string          `json:"currency"`
	Provider    string          `json:"provider,omitempty"`
}

type initiateResponse struct {
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
	Instructions  string `json:"instructions,omitempty"`
	Error         string `json:"error,omitempty"`
}

func NewClient(cfg config.PaymentSettings, client *http.Client) *Client {
	if client == nil {
		client = httpclient.New("payment-gateway", cfg.Timeout)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		c:       client,
	}
}

// Initiate posts the payment and returns the gateway transaction id. The
// amount is rounded to cents and encoded as a decimal string.
func (c *Client) Initiate(ctx context.Context, req domain.GatewayPaymentRequest) (domain.GatewayPaymentResponse, error) {
	b, err := json.Marshal(initiateRequest{
		Amount:      req.Amount.Round(2),
		PhoneNumber: req.PhoneNumber,
		UserID:      req.UserID,
		Currency:    req.Currency,
		Provider:    string(req.Provider),
	})
	if err != nil {
		return domain.GatewayPaymentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+initiatePath, bytes.NewReader(b))
	if err != nil {
		return domain.GatewayPaymentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.c.Do(httpReq)
	if err != nil {
		return domain.GatewayPaymentResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.GatewayPaymentResponse{}, fmt.Errorf("read response: %w", err)
	}

	var out initiateResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode < http.StatusBadRequest {
			return domain.GatewayPaymentResponse{}, fmt.Errorf("unmarshal response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		detail := out.Error
		if detail == "" {
			detail = out.Message
		}
		return domain.GatewayPaymentResponse{}, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, detail)
	}
	if out.TransactionID == "" {
		return domain.GatewayPaymentResponse{}, fmt.Errorf("%w: response without transaction_id", ErrGateway)
	}

	return domain.GatewayPaymentResponse{
		TransactionID: out.TransactionID,
		Message:       out.Message,
		Instructions:  out.Instructions,
	}, nil
}

var _ port.PaymentGateway = (*Client)(nil)
