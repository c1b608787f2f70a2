package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/syy-ex/hair-makeover/config"
	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
)

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// NewMailer returns an SMTP mailer when SMTP is configured, otherwise a
// mailer that only logs the code.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if cfg.Enabled() {
		return &SMTPMailer{cfg: cfg}
	}
	logger.Log.Warn("SMTP is not configured, verification codes will only be logged")
	return LogMailer{}
}

// LogMailer writes codes to the log. Meant for local development.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(_ context.Context, email, code string) error {
	logger.Log.Info("Verification code", zap.String("email", email), zap.String("code", code))
	return nil
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(emailCodeTTL/time.Minute))
	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + email,
		"Subject: Your verification code",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	if err := m.send(ctx, email, []byte(msg)); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var (
		conn net.Conn
		err  error
	)
	// Port 465 speaks TLS from the first byte; others upgrade with STARTTLS.
	implicitTLS := m.cfg.Secure || m.cfg.Port == 465
	if implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if !implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
		return err
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
