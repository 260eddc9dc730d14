package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/platform/config"
)

// Noop drops every message. It is used when email delivery is disabled.
type Noop struct{}

func (Noop) Send(context.Context, notifications.Email) error {
	return nil
}

const defaultTimeout = 10 * time.Second

// SMTP delivers each notification over its own connection.
type SMTP struct {
	Addr        string
	Host        string
	User        string
	Password    string
	UseTLS      bool
	DefaultFrom string
	Timeout     time.Duration

	now func() time.Time
}

// New returns an SMTP mailer, or Noop when email is disabled.
func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return Noop{}
	}
	return &SMTP{
		Addr:        net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		Host:        cfg.SMTPHost,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		UseTLS:      cfg.SMTPUseTLS,
		DefaultFrom: cfg.EmailFrom,
		Timeout:     defaultTimeout,
		now:         time.Now,
	}
}

func (s *SMTP) Send(ctx context.Context, msg notifications.Email) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	from := msg.From
	if from == "" {
		from = s.DefaultFrom
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO %s: %w", msg.To, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(compose(from, msg, s.now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp DATA close: %w", err)
	}
	return client.Quit()
}

// dial connects, upgrades to TLS and authenticates as configured. The whole
// conversation is bounded by Timeout or the context deadline, whichever is
// earlier.
func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	dialer := net.Dialer{Timeout: s.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", s.Addr, err)
	}
	_ = conn.SetDeadline(s.deadline(ctx))
	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp greeting: %w", err)
	}
	if s.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	if s.User != "" {
		if err := client.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

func (s *SMTP) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}

func (s *SMTP) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(s.timeout())
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

// compose renders a plain text message. Event type and approval id travel
// as X- headers so mail filters can route approval traffic.
func compose(from string, msg notifications.Email, at time.Time) []byte {
	var b strings.Builder
	header := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	header("From", oneLine(from))
	header("To", oneLine(msg.To))
	header("Subject", mime.QEncoding.Encode("utf-8", oneLine(msg.Subject)))
	header("Date", at.Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@leaveflow>")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	if msg.Type != "" {
		header("X-Leaveflow-Event", oneLine(msg.Type))
	}
	if msg.ApprovalID != "" {
		header("X-Leaveflow-Approval", oneLine(msg.ApprovalID))
	}
	b.WriteString("\r\n")
	b.WriteString(crlf(msg.Body))
	return []byte(b.String())
}

func oneLine(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func crlf(body string) string {
	return strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
}
