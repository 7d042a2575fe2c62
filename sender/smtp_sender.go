package sender

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST not set")
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("SMTP_PORT not set")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP_FROM or SMTP_USER must be set")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// buildMessage renders an HTML mail with the headers SendEmail sends.
func (s *SMTPSender) buildMessage(to, subject, body string) []byte {
	return []byte(
		"From: " + s.cfg.From + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (SendResult, error) {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	// smtp.SendMail has no context support; run it aside and stop waiting
	// when ctx is done.
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, s.cfg.From, []string{to}, s.buildMessage(to, subject, body))
	}()

	select {
	case <-ctx.Done():
		return SendResult{}, fmt.Errorf("smtp send aborted: %w", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
		}
	}

	return SendResult{
		MessageID: fmt.Sprintf("smtp-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}
