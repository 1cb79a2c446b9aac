package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender sends plain-text email through an unauthenticated relay (Mailpit-compatible).
type SMTPSender struct {
	addr      string
	from      string
	templates *Templates
	sendMail  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, from string, templates *Templates) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@telehealth.local"
	}
	return &SMTPSender{
		addr:      fmt.Sprintf("%s:%s", strings.TrimSpace(host), strings.TrimSpace(port)),
		from:      from,
		templates: templates,
		sendMail:  smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to Target, kind TemplateKind, fields map[string]string) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := s.templates.Render(kind, withName(fields, to))
	if err != nil {
		return err
	}
	msg := buildMessage(s.from, to.Email, subject, body)
	return s.sendMail(s.addr, nil, s.from, []string{to.Email}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, to, subject, body,
	)
}
