package email

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/platform/config"
)

var sentAt = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func TestComposeStripsHeaderInjection(t *testing.T) {
	msg := string(compose("a@example.com", notifications.Email{To: "b@example.com", Subject: "Leave\r\nBcc: x@evil", Body: "hello"}, sentAt))
	assert.Contains(t, msg, "Subject: Leave  Bcc: x@evil\r\n")
	assert.NotContains(t, msg, "\r\nBcc:")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nhello"))
}

func TestComposeHeaders(t *testing.T) {
	msg := string(compose("hr@example.com", notifications.Email{
		To:         "mgr@example.com",
		Subject:    "Demande escaladée",
		Body:       "line one\nline two",
		Type:       notifications.TypeApprovalEscalated,
		ApprovalID: "apr-1",
	}, sentAt))

	assert.Contains(t, msg, "Date: Mon, 04 Mar 2024 09:30:00 +0000\r\n")
	assert.Contains(t, msg, "X-Leaveflow-Event: "+notifications.TypeApprovalEscalated+"\r\n")
	assert.Contains(t, msg, "X-Leaveflow-Approval: apr-1\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "Message-ID: <")
	assert.True(t, strings.HasSuffix(msg, "line one\r\nline two"))
}

func TestComposeOmitsEmptyRoutingHeaders(t *testing.T) {
	msg := string(compose("hr@example.com", notifications.Email{To: "mgr@example.com", Subject: "Hi"}, sentAt))
	assert.NotContains(t, msg, "X-Leaveflow-")
}

func TestNewDisabledIsNoop(t *testing.T) {
	mailer := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"})
	assert.IsType(t, Noop{}, mailer)
	assert.NoError(t, mailer.Send(context.Background(), notifications.Email{To: "b@example.com"}))
}

func TestNewEnabled(t *testing.T) {
	mailer := New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example.com", SMTPPort: 2525, EmailFrom: "hr@example.com"})
	smtpMailer, ok := mailer.(*SMTP)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:2525", smtpMailer.Addr)
	assert.Equal(t, "hr@example.com", smtpMailer.DefaultFrom)
}

func TestSendWithoutRecipientIsSkipped(t *testing.T) {
	mailer := New(config.Config{EmailEnabled: true, SMTPHost: "127.0.0.1", SMTPPort: 1})
	assert.NoError(t, mailer.Send(context.Background(), notifications.Email{To: " "}))
}

func TestSendGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	defer func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	}()

	mailer := &SMTP{Addr: ln.Addr().String(), Host: "127.0.0.1", Timeout: 200 * time.Millisecond, now: time.Now}
	done := make(chan error, 1)
	go func() {
		done <- mailer.Send(context.Background(), notifications.Email{To: "mgr@example.com", Subject: "Reminder"})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp greeting")
	case <-time.After(5 * time.Second):
		t.Fatal("send blocked on a server that never greets")
	}
}

func TestDeadlinePrefersEarlierContext(t *testing.T) {
	mailer := &SMTP{Timeout: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.WithinDuration(t, time.Now().Add(time.Second), mailer.deadline(ctx), 500*time.Millisecond)

	assert.WithinDuration(t, time.Now().Add(time.Hour), mailer.deadline(context.Background()), time.Second)
	assert.Equal(t, defaultTimeout, (&SMTP{}).timeout())
}
