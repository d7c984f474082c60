package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPConfig describes the relay and the operator mailbox.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SMTPNotifier mails notifications to the operators.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Notify sends one plain-text mail to every configured recipient.
func (s *SMTPNotifier) Notify(_ context.Context, subject, body string) error {
	if len(s.cfg.To) == 0 {
		return fmt.Errorf("smtp notifier: no recipients configured")
	}
	msg := buildMessage(s.cfg.From, s.cfg.To, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	// 465 is implicit TLS; smtp.SendMail negotiates STARTTLS on 587.
	if s.cfg.Port == 465 {
		return s.sendImplicitTLS(addr, auth, msg)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, s.cfg.To, msg)
}

func buildMessage(from string, to []string, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n"))
}

func (s *SMTPNotifier) sendImplicitTLS(addr string, auth smtp.Auth, msg []byte) error {
	host, _, _ := net.SplitHostPort(addr)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range s.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	return wc.Close()
}
