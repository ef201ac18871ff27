// Package secrets keeps sender credentials in the OS keychain so the senders
// pool sheet does not have to carry them.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"leadgen-engine/internal/domain"
)

const KeyringService = "leadgen"

var ErrSecretNotFound = errors.New("sender secret not found")

// Account is the keyring account name for one sender on one channel.
func Account(ch domain.Channel, senderID string) string {
	return fmt.Sprintf("leadgen:%s:%s", ch, strings.ToLower(strings.TrimSpace(senderID)))
}

func Get(ch domain.Channel, senderID string) (string, error) {
	if strings.TrimSpace(senderID) == "" {
		return "", errors.New("sender id is empty")
	}
	pw, err := keyring.Get(KeyringService, Account(ch, senderID))
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", fmt.Errorf("%w: %s %s", ErrSecretNotFound, ch, senderID)
	}
	return pw, nil
}

func Set(ch domain.Channel, senderID, secret string) error {
	if strings.TrimSpace(senderID) == "" {
		return errors.New("sender id is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, Account(ch, senderID), secret)
}

func Delete(ch domain.Channel, senderID string) error {
	if strings.TrimSpace(senderID) == "" {
		return errors.New("sender id is empty")
	}
	return keyring.Delete(KeyringService, Account(ch, senderID))
}

// Fill returns s with its credential taken from the keychain when the pool
// left it blank: the SMTP password for email senders, the API key for
// WhatsApp senders.
func Fill(s domain.Sender) (domain.Sender, error) {
	switch s.Channel {
	case domain.ChannelEmail:
		if s.Password != "" {
			return s, nil
		}
		pw, err := Get(s.Channel, s.ID)
		if err != nil {
			return s, err
		}
		s.Password = pw
	case domain.ChannelWhatsApp:
		if s.APIKey != "" {
			return s, nil
		}
		key, err := Get(s.Channel, s.ID)
		if err != nil {
			return s, err
		}
		s.APIKey = key
	}
	return s, nil
}

// Keyring exposes the package functions as a value, for handlers that take
// a secret store.
type Keyring struct{}

func (Keyring) Set(ch domain.Channel, senderID, secret string) error {
	return Set(ch, senderID, secret)
}

func (Keyring) Delete(ch domain.Channel, senderID string) error {
	return Delete(ch, senderID)
}
