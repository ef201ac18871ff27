package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"leadgen-engine/internal/domain"
)

// SenderEntry is one sender in a senders file. Passwords and API keys may
// be left out and kept in the OS keychain instead.
type SenderEntry struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	Active         bool   `yaml:"active"`
	Password       string `yaml:"password"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AttachmentFile string `yaml:"resume_filename"`
	Subject        string `yaml:"email_subject"`
	APIKey         string `yaml:"api_key"`
}

type SendersFile struct {
	Senders []SenderEntry `yaml:"senders"`
}

// LoadSenders reads a YAML sender pool, keeping file order.
func LoadSenders(path string) ([]domain.Sender, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read senders: %w", err)
	}
	var sf SendersFile
	if err := yaml.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("parse senders %s: %w", path, err)
	}

	out := make([]domain.Sender, 0, len(sf.Senders))
	for i, e := range sf.Senders {
		ch, err := domain.ParseChannel(e.Type)
		if err != nil {
			return nil, fmt.Errorf("senders[%d]: %w", i, err)
		}
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("senders[%d]: id is required", i)
		}
		out = append(out, domain.Sender{
			ID:             strings.TrimSpace(e.ID),
			Channel:        ch,
			Active:         e.Active,
			Password:       e.Password,
			Host:           strings.TrimSpace(e.Host),
			Port:           e.Port,
			AttachmentFile: strings.TrimSpace(e.AttachmentFile),
			Subject:        e.Subject,
			APIKey:         e.APIKey,
		})
	}
	return out, nil
}
