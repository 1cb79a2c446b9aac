package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookSMSSender posts {"to", "body"} to an SMS gateway webhook.
type WebhookSMSSender struct {
	url       string
	token     string
	http      *http.Client
	templates *Templates
}

func NewWebhookSMSSender(url, token string, templates *Templates) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:       strings.TrimSpace(url),
		token:     strings.TrimSpace(token),
		http:      &http.Client{Timeout: 5 * time.Second},
		templates: templates,
	}
}

func (s *WebhookSMSSender) Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	if to.Phone == "" {
		return ErrNoAddress
	}
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	_, body, err := s.templates.Render(kind, withName(fields, to))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(map[string]string{"to": to.Phone, "body": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}
