package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel is an outreach medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, nil
	case "whatsapp":
		return ChannelWhatsApp, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// StatusColumn is the records column holding this channel's status.
func (c Channel) StatusColumn() string {
	if c == ChannelWhatsApp {
		return "whatsapp_status"
	}
	return "email_status"
}

// Sender is one outreach identity from the senders pool.
type Sender struct {
	ID             string
	Channel        Channel
	Active         bool
	Password       string
	Host           string
	Port           int
	AttachmentFile string
	Subject        string
	APIKey         string
}

// SendLogEntry is one confirmed send, used for usage counting.
type SendLogEntry struct {
	SenderID  string
	Channel   Channel
	Recipient string
	At        time.Time
}
