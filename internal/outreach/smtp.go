package outreach

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
)

const (
	DefaultTextBody = "Please find my resume attached."
	DefaultHTMLBody = `<div style="font-family: 'Segoe UI', Arial, sans-serif; color: #333;">
  <p>Dear Hiring Manager,</p>
  <p>I am writing to express my interest in a software development role at your company.</p>
  <p>Please find my resume attached for your consideration.</p>
  <p>Thank you for your time.</p>
</div>`
)

// SMTPConfig is shared by every email sender; per-sender host, port and
// credentials come from the senders pool.
type SMTPConfig struct {
	FromName      string
	UseTLS        bool // STARTTLS after connecting
	UseSSL        bool // implicit TLS from the first byte
	AttachmentDir string
	TextBody      string
	HTMLBody      string
	Timeout       time.Duration

	// InsecureSkipVerify is only meant for local test servers.
	InsecureSkipVerify bool
}

type SMTPMailer struct {
	cfg      SMTPConfig
	archiver Archiver
	log      logger.Logger
}

func NewSMTPMailer(cfg SMTPConfig, archiver Archiver, log logger.Logger) *SMTPMailer {
	if cfg.TextBody == "" {
		cfg.TextBody = DefaultTextBody
	}
	if cfg.HTMLBody == "" {
		cfg.HTMLBody = DefaultHTMLBody
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SMTPMailer{cfg: cfg, archiver: archiver, log: log.With(logger.String("component", "smtp"))}
}

func (m *SMTPMailer) SendEmail(ctx context.Context, recipient string, s domain.Sender, attachmentPath, subject string) error {
	if recipient == "" {
		return ErrNoRecipient
	}
	if s.ID == "" || s.Password == "" || s.Host == "" || s.Port == 0 {
		return fmt.Errorf("%w: %q needs id, password, host and port", ErrSenderConfig, s.ID)
	}
	if attachmentPath == "" || subject == "" {
		return fmt.Errorf("%w: %q has no attachment or subject", ErrSenderConfig, s.ID)
	}

	path := resolvePath(m.cfg.AttachmentDir, attachmentPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAttachmentMissing, path, err)
	}

	raw, err := BuildMessage(Message{
		From:           mail.Address{Name: m.cfg.FromName, Address: s.ID},
		To:             recipient,
		Subject:        subject,
		Text:           m.cfg.TextBody,
		HTML:           m.cfg.HTMLBody,
		AttachmentName: filepath.Base(path),
		Attachment:     data,
	})
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if err := m.deliver(ctx, s, recipient, raw); err != nil {
		return fmt.Errorf("send via %s: %w", s.ID, err)
	}
	m.log.Info("email sent", logger.String("sender", s.ID), logger.String("recipient", recipient))

	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, s, raw); err != nil {
			m.log.Warn("archive sent message", logger.String("sender", s.ID), logger.Error(err))
		}
	}
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, s domain.Sender, to string, raw []byte) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	tlsCfg := &tls.Config{
		ServerName:         s.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: m.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test servers
	}
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if m.cfg.UseTLS && !m.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", s.ID, s.Password, s.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(s.ID); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return c.Quit()
}
