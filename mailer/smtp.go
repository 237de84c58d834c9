// Package mailer provides the Mailer transports used to deliver account
// emails: direct SMTP, a Kafka topic consumed by a mail worker, or the log.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-user-auth"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// DialTimeout bounds the TCP connect when the context has no deadline.
	DialTimeout time.Duration
}

type SMTPMailer struct {
	cfg    SMTPConfig
	logger auth.Logger
	dialer net.Dialer
}

var _ auth.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg SMTPConfig, logger auth.Logger) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 8 * time.Second
	}
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

func (s *SMTPMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	msg := buildMessage(s.fromHeader(), to, subject, html)
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	s.logger.Debug("smtp sending", "to", to, "via", addr)

	if err := s.send(ctx, addr, to, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"to": to, "addr": addr})
	}

	s.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}

func (s *SMTPMailer) send(ctx context.Context, addr, to string, msg []byte) error {
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(2 * s.cfg.DialTimeout)
	}
	_ = conn.SetDeadline(deadline)

	// port 465 expects TLS from the first byte
	if s.cfg.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: s.cfg.Host})
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if s.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return err
			}
		}
	}

	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *SMTPMailer) fromHeader() string {
	return formatFrom(s.cfg.FromName, s.cfg.From)
}

func formatFrom(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

func buildMessage(from, to, subject, html string) []byte {
	return []byte(strings.Join([]string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", sanitizeHeader(subject)),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		html,
	}, "\r\n"))
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
