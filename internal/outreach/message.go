package outreach

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is the content of one outgoing email.
type Message struct {
	From    mail.Address
	To      string
	Subject string
	Text    string
	HTML    string

	AttachmentName string
	Attachment     []byte

	Date time.Time
}

// BuildMessage renders m as a multipart/mixed RFC 5322 message: a text and
// an HTML alternative followed by the attachment.
func BuildMessage(m Message) ([]byte, error) {
	if m.Date.IsZero() {
		m.Date = time.Now()
	}

	var h mail.Header
	h.SetDate(m.Date)
	h.SetAddressList("From", []*mail.Address{&m.From})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline: %w", err)
	}
	if err := writeInline(tw, "text/plain", m.Text); err != nil {
		return nil, err
	}
	if m.HTML != "" {
		if err := writeInline(tw, "text/html", m.HTML); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	if len(m.Attachment) > 0 {
		var ah mail.AttachmentHeader
		ct := mime.TypeByExtension(filepath.Ext(m.AttachmentName))
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.SetFilename(m.AttachmentName)
		ah.Set("Content-Transfer-Encoding", "base64")
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment: %w", err)
		}
		if _, err := aw.Write(m.Attachment); err != nil {
			return nil, err
		}
		if err := aw.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := tw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}
