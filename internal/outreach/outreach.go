// Package outreach delivers campaign messages over email and WhatsApp.
package outreach

import (
	"context"
	"errors"
	"path/filepath"

	"leadgen-engine/internal/domain"
)

var (
	ErrNoRecipient       = errors.New("no valid recipient")
	ErrSenderConfig      = errors.New("invalid sender config")
	ErrAttachmentMissing = errors.New("attachment not found")
)

// Mailer sends one email from sender to recipient with the sender's
// attachment and subject.
type Mailer interface {
	SendEmail(ctx context.Context, recipient string, sender domain.Sender, attachmentPath, subject string) error
}

// WhatsApp uploads an attachment once and sends it to a list of numbers.
type WhatsApp interface {
	Upload(ctx context.Context, sender domain.Sender, file string) (attachmentID string, err error)
	Send(ctx context.Context, recipients []string, attachmentID string, sender domain.Sender) error
}

// Archiver stores a copy of a sent message, e.g. in the sender's Sent
// folder.
type Archiver interface {
	Archive(ctx context.Context, sender domain.Sender, raw []byte) error
}

func resolvePath(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
