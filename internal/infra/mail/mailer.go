// Package mail sends account emails through a transactional mail API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/httpclient"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

const resetSubject = "Réinitialisation de votre mot de passe GoShopper"

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPMailer posts messages to <base_url>/send.
type HTTPMailer struct {
	cfg    config.MailSettings
	client *http.Client
}

func NewHTTPMailer(cfg config.MailSettings, client *http.Client) *HTTPMailer {
	if client == nil {
		client = httpclient.New("mail", cfg.Timeout)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPMailer{cfg: cfg, client: client}
}

func (m *HTTPMailer) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	link, err := ResetLink(m.cfg.ResetURL, token)
	if err != nil {
		return err
	}
	body, err := json.Marshal(message{
		From:    m.cfg.From,
		To:      email,
		Subject: resetSubject,
		Text: fmt.Sprintf("Utilisez ce lien pour choisir un nouveau mot de passe : %s\nIl expire le %s UTC.",
			link, expiresAt.UTC().Format("02/01/2006 15:04")),
	})
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mail api returned %d", resp.StatusCode)
	}
	return nil
}

// ResetLink appends the token as the "token" query parameter.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// LogMailer records that a reset email would have been sent.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, _ string, expiresAt time.Time) error {
	m.log.Info("password reset email skipped, no mail api configured",
		zap.String("to", logger.MaskEmail(email)),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// New picks the HTTP mailer when a base URL is configured.
func New(cfg config.MailSettings, log *zap.Logger) port.Mailer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return NewLogMailer(log)
	}
	return NewHTTPMailer(cfg, nil)
}
