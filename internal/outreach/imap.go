package outreach

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"leadgen-engine/internal/domain"
)

// IMAPArchiver appends sent messages to a mailbox using the sender's own
// credentials.
type IMAPArchiver struct {
	Addr    string // host:port, implicit TLS
	Mailbox string
	TLS     *tls.Config
}

func NewIMAPArchiver(addr, mailbox string) *IMAPArchiver {
	if mailbox == "" {
		mailbox = "Sent"
	}
	host, _, _ := net.SplitHostPort(addr)
	return &IMAPArchiver{
		Addr:    addr,
		Mailbox: mailbox,
		TLS:     &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	}
}

func (a *IMAPArchiver) Archive(ctx context.Context, s domain.Sender, raw []byte) error {
	c, err := dialAndLogin(ctx, a.Addr, s.ID, s.Password, a.TLS)
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout().Wait(); _ = c.Close() }()

	cmd := c.Append(a.Mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append %s: %w", a.Mailbox, err)
	}
	return nil
}

// dialAndLogin connects over TLS and logs in. The connection is closed if
// ctx ends before login completes.
func dialAndLogin(ctx context.Context, addr, username, password string, tlsCfg *tls.Config) (*imapclient.Client, error) {
	if addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}
