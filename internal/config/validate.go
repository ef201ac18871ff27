package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one, or returns nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a trimmed copy of cfg with defaults filled
// in, plus everything wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.App.Backend = strings.ToLower(strings.TrimSpace(out.App.Backend))
	out.Apify.Token = strings.TrimSpace(out.Apify.Token)
	out.Apify.BaseURL = strings.TrimRight(strings.TrimSpace(out.Apify.BaseURL), "/")
	out.Sheets.SpreadsheetID = strings.TrimSpace(out.Sheets.SpreadsheetID)

	d := Default()
	if out.App.MaxConcurrentTasks <= 0 {
		out.App.MaxConcurrentTasks = d.App.MaxConcurrentTasks
	}
	if out.App.TaskRetention <= 0 {
		out.App.TaskRetention = d.App.TaskRetention
	}
	if out.Sheets.RecordsSheet == "" {
		out.Sheets.RecordsSheet = d.Sheets.RecordsSheet
	}
	if out.Sheets.SendersSheet == "" {
		out.Sheets.SendersSheet = d.Sheets.SendersSheet
	}
	if out.Sheets.SendLogSheet == "" {
		out.Sheets.SendLogSheet = d.Sheets.SendLogSheet
	}

	// ---- app ----
	if _, _, err := net.SplitHostPort(out.App.Addr); err != nil {
		res.addErr("app.addr %q is not host:port", out.App.Addr)
	}
	switch out.App.Backend {
	case BackendSheets:
		if out.Sheets.SpreadsheetID == "" {
			res.addErr("sheets.spreadsheet_id (GOOGLE_SHEET_ID) is required with the sheets backend")
		}
		if out.Sheets.CredentialsPath == "" {
			res.addErr("sheets.credentials_path (GOOGLE_SERVICE_ACCOUNT_PATH) is required with the sheets backend")
		}
	case BackendSQLite:
		if out.SendersFile == "" {
			res.addWarn("senders_file is empty; campaigns will fail with no active senders")
		}
	default:
		res.addErr("app.backend must be %q or %q, got %q", BackendSheets, BackendSQLite, out.App.Backend)
	}
	if out.App.MaxConcurrentTasks > 32 {
		res.addWarn("app.max_concurrent_tasks is %d; every task holds outbound connections", out.App.MaxConcurrentTasks)
	}

	// ---- apify ----
	if out.Apify.Token == "" {
		res.addWarn("apify.token (APIFY_API_TOKEN) is empty; scraping tasks will fail")
	}
	if out.Apify.LinkedInActorID == "" {
		res.addWarn("apify.linkedin_actor_id is empty; scraping tasks will fail")
	}
	if out.Apify.ContactActorID == "" && !out.Scrape.HTMLFallback {
		res.addErr("set apify.contact_actor_id or enable scrape.html_fallback")
	}
	if out.Apify.PollInterval > 0 && out.Apify.PollInterval < time.Second {
		res.addWarn("apify.poll_interval is very low (%s) and may hit API rate limits", out.Apify.PollInterval)
	}

	// ---- limits ----
	if out.Limits.Email <= 0 {
		res.addErr("limits.email must be > 0")
	}
	if out.Limits.WhatsApp <= 0 {
		res.addErr("limits.whatsapp must be > 0")
	}

	// ---- mail / whatsapp ----
	if out.Mail.UseTLS && out.Mail.UseSSL {
		res.addErr("mail.use_tls and mail.use_ssl are mutually exclusive")
	}
	if out.Mail.IMAPAddr != "" {
		if _, _, err := net.SplitHostPort(out.Mail.IMAPAddr); err != nil {
			res.addErr("mail.imap_addr %q is not host:port", out.Mail.IMAPAddr)
		}
	}
	if out.WhatsApp.APIURL == "" {
		res.addWarn("whatsapp.api_url (INBOXINO_API_URL) is empty; WhatsApp campaigns will fail")
	}

	return out, res
}
