package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
)

const DefaultInboxinoUploadURL = "https://dl2.inboxino.com/api/upload/file"

type InboxinoConfig struct {
	SendURL       string
	UploadURL     string
	Message       string
	AttachmentDir string
}

// Inboxino talks to the Inboxino WhatsApp notification API.
type Inboxino struct {
	cfg  InboxinoConfig
	http *http.Client
	log  logger.Logger
}

func NewInboxino(cfg InboxinoConfig, hc *http.Client, log logger.Logger) *Inboxino {
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultInboxinoUploadURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 45 * time.Second}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Inboxino{cfg: cfg, http: hc, log: log.With(logger.String("component", "inboxino"))}
}

type uploadResponse struct {
	Data struct {
		Path string `json:"path"`
	} `json:"data"`
}

// Upload sends file to Inboxino and returns the attachment path to
// reference in messages.
func (x *Inboxino) Upload(ctx context.Context, s domain.Sender, file string) (string, error) {
	if s.APIKey == "" {
		return "", fmt.Errorf("%w: %q has no api key", ErrSenderConfig, s.ID)
	}
	if file == "" {
		return "", fmt.Errorf("%w: %q has no attachment", ErrSenderConfig, s.ID)
	}
	path := resolvePath(x.cfg.AttachmentDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAttachmentMissing, path, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	ph := make(textproto.MIMEHeader)
	ph.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	ph.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(ph)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.cfg.UploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := x.do(req, s.APIKey, &out); err != nil {
		return "", fmt.Errorf("inboxino upload: %w", err)
	}
	if out.Data.Path == "" {
		return "", fmt.Errorf("inboxino upload: response has no data.path")
	}
	x.log.Info("attachment uploaded", logger.String("sender", s.ID), logger.String("file", file))
	return out.Data.Path, nil
}

type sendMessage struct {
	MessageType    string `json:"message_type"`
	AttachmentFile string `json:"attachment_file"`
	OriginFileName string `json:"origin_file_name"`
	Message        string `json:"message"`
}

type sendRequest struct {
	Messages        []sendMessage `json:"messages"`
	Type            string        `json:"type"`
	Recipients      []string      `json:"recipients"`
	Platforms       []string      `json:"platforms"`
	WithCountryCode string        `json:"with_country_code"`
}

func (x *Inboxino) Send(ctx context.Context, recipients []string, attachmentID string, s domain.Sender) error {
	if len(recipients) == 0 {
		return ErrNoRecipient
	}
	if attachmentID == "" {
		return fmt.Errorf("%w: missing attachment id", ErrSenderConfig)
	}
	if s.APIKey == "" {
		return fmt.Errorf("%w: %q has no api key", ErrSenderConfig, s.ID)
	}

	payload, err := json.Marshal(sendRequest{
		Messages: []sendMessage{{
			MessageType:    "file",
			AttachmentFile: attachmentID,
			OriginFileName: filepath.Base(s.AttachmentFile),
			Message:        x.cfg.Message,
		}},
		Type:            "notification",
		Recipients:      recipients,
		Platforms:       []string{"whatsapp"},
		WithCountryCode: "0",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.cfg.SendURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := x.do(req, s.APIKey, nil); err != nil {
		return fmt.Errorf("inboxino send via %s: %w", s.ID, err)
	}
	x.log.Info("whatsapp sent",
		logger.String("sender", s.ID),
		logger.String("recipients", strings.Join(recipients, ",")),
	)
	return nil
}

func (x *Inboxino) do(req *http.Request, apiKey string, out any) error {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := x.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
