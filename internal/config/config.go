package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leadgen-engine/internal/logger"
)

const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

type Config struct {
	App struct {
		Addr               string        `yaml:"addr"`
		DataDir            string        `yaml:"data_dir"`
		MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
		TaskRetention      time.Duration `yaml:"task_retention"`
		// Backend selects the record store and usage log: sheets or sqlite.
		Backend string `yaml:"backend"`
	} `yaml:"app"`

	Log logger.Config `yaml:"log"`

	Apify struct {
		Token           string        `yaml:"token"`
		LinkedInActorID string        `yaml:"linkedin_actor_id"`
		ContactActorID  string        `yaml:"contact_actor_id"`
		BaseURL         string        `yaml:"base_url"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		MemoryMB        int           `yaml:"memory_mb"`
		TimeoutSec      int           `yaml:"timeout_sec"`
	} `yaml:"apify"`

	Scrape struct {
		EnrichInterval   time.Duration `yaml:"enrich_interval"`
		CombinationPause time.Duration `yaml:"combination_pause"`
		// HTMLFallback enriches from the site's own pages when the contact
		// actor finds nothing.
		HTMLFallback bool `yaml:"html_fallback"`
	} `yaml:"scrape"`

	Sheets struct {
		SpreadsheetID   string        `yaml:"spreadsheet_id"`
		CredentialsPath string        `yaml:"credentials_path"`
		RecordsSheet    string        `yaml:"records_sheet"`
		SendersSheet    string        `yaml:"senders_sheet"`
		SendLogSheet    string        `yaml:"send_log_sheet"`
		SendLogCache    time.Duration `yaml:"send_log_cache"`
	} `yaml:"sheets"`

	Limits struct {
		Email    int `yaml:"email"`
		WhatsApp int `yaml:"whatsapp"`
	} `yaml:"limits"`

	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	Mail struct {
		FromName      string `yaml:"from_name"`
		UseTLS        bool   `yaml:"use_tls"`
		UseSSL        bool   `yaml:"use_ssl"`
		AttachmentDir string `yaml:"attachment_dir"`
		IMAPAddr      string `yaml:"imap_addr"`
		SentMailbox   string `yaml:"sent_mailbox"`
		TextBody      string `yaml:"text_body"`
		HTMLBody      string `yaml:"html_body"`
	} `yaml:"mail"`

	WhatsApp struct {
		APIURL    string `yaml:"api_url"`
		UploadURL string `yaml:"upload_url"`
		Message   string `yaml:"message"`
	} `yaml:"whatsapp"`

	// SendersFile is a YAML sender pool used with the sqlite backend.
	SendersFile string `yaml:"senders_file"`
}

// Default returns the built-in settings every file is layered over.
func Default() Config {
	var c Config
	c.App.Addr = "127.0.0.1:8000"
	c.App.MaxConcurrentTasks = 4
	c.App.TaskRetention = 24 * time.Hour
	c.App.Backend = BackendSheets
	c.Log.Level = "info"
	c.Apify.BaseURL = "https://api.apify.com/v2"
	c.Apify.PollInterval = 5 * time.Second
	c.Scrape.EnrichInterval = 2 * time.Second
	c.Scrape.CombinationPause = 5 * time.Second
	c.Sheets.RecordsSheet = "Sheet1"
	c.Sheets.SendersSheet = "Senders Pool"
	c.Sheets.SendLogSheet = "Senders Log"
	c.Sheets.SendLogCache = 10 * time.Minute
	c.Limits.Email = 30
	c.Limits.WhatsApp = 200
	c.Redis.Prefix = "leadgen"
	c.Mail.UseTLS = true
	c.Mail.SentMailbox = "Sent"
	c.WhatsApp.APIURL = "https://back.inboxino.com/api/access-api/message/send"
	return c
}

// Load reads a YAML file over Default. A missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
