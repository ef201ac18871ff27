package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file settings with environment variables.
func ApplyEnv(cfg *Config) error {
	str := map[string]*string{
		"APIFY_API_TOKEN":             &cfg.Apify.Token,
		"LINKEDIN_ACTOR_ID":           &cfg.Apify.LinkedInActorID,
		"CONTACT_SCRAPER_ACTOR_ID":    &cfg.Apify.ContactActorID,
		"GOOGLE_SHEET_ID":             &cfg.Sheets.SpreadsheetID,
		"GOOGLE_SERVICE_ACCOUNT_PATH": &cfg.Sheets.CredentialsPath,
		"SENDERS_POOL_SHEET_NAME":     &cfg.Sheets.SendersSheet,
		"SENDERS_LOG_SHEET_NAME":      &cfg.Sheets.SendLogSheet,
		"INBOXINO_API_URL":            &cfg.WhatsApp.APIURL,
		"WHATSAPP_MESSAGE_CONTENT":    &cfg.WhatsApp.Message,
		"MAIL_FROM_NAME":              &cfg.Mail.FromName,
		"REDIS_ADDR":                  &cfg.Redis.Addr,
		"LOG_LEVEL":                   &cfg.Log.Level,
		"ENGINE_ADDR":                 &cfg.App.Addr,
		"LEADGEN_DATA_DIR":            &cfg.App.DataDir,
		"LEADGEN_BACKEND":             &cfg.App.Backend,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"EMAIL_DAILY_LIMIT":    &cfg.Limits.Email,
		"WHATSAPP_DAILY_LIMIT": &cfg.Limits.WhatsApp,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"MAIL_USE_TLS": &cfg.Mail.UseTLS,
		"MAIL_USE_SSL": &cfg.Mail.UseSSL,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}
