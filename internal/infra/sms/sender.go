// Package sms delivers one-time codes through an SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/httpclient"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

// HTTPSender posts messages to the gateway's /messages endpoint.
type HTTPSender struct {
	baseURL  string
	apiKey   string
	senderID string
	client   *http.Client
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func NewHTTPSender(cfg config.SMSSettings, client *http.Client) *HTTPSender {
	if client == nil {
		client = httpclient.New("sms", cfg.Timeout)
	}
	return &HTTPSender{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		client:   client,
	}
}

func (s *HTTPSender) Send(ctx context.Context, phoneE164, message string) error {
	body, err := json.Marshal(sendRequest{To: phoneE164, From: s.senderID, Message: message})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when no
// gateway is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phoneE164, message string) error {
	s.log.Info("sms delivery skipped, no gateway configured",
		zap.String("to", logger.MaskPhone(phoneE164)),
		zap.Int("length", len(message)),
	)
	return nil
}

// New picks the HTTP sender when a base URL is configured.
func New(cfg config.SMSSettings, log *zap.Logger) port.SMSSender {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return NewLogSender(log)
	}
	return NewHTTPSender(cfg, nil)
}

var (
	_ port.SMSSender = (*HTTPSender)(nil)
	_ port.SMSSender = (*LogSender)(nil)
)
