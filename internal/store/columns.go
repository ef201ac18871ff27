package store

import (
	"errors"
	"fmt"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

var ErrColumnMissing = errors.New("column missing")

// Headers is the records sheet column order.
var Headers = []string{
	"employmentType", "companyName", "companyCountry", "companyWebsite", "postedAt",
	"phones", "emails", "title", "linkedin", "link", "fullCompanyAddress",
	"twitter", "instagram", "facebook", "youtube", "tiktok", "pinterest", "discord",
	"email_status", "whatsapp_status",
}

// HeaderMap maps a header name to its 0-based column index.
type HeaderMap map[string]int

func NewHeaderMap(header []string) HeaderMap {
	m := make(HeaderMap, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := m[h]; !dup {
			m[h] = i
		}
	}
	return m
}

// Require fails with ErrColumnMissing naming the first absent column.
func (m HeaderMap) Require(cols ...string) error {
	for _, c := range cols {
		if _, ok := m[c]; !ok {
			return fmt.Errorf("%w: %q", ErrColumnMissing, c)
		}
	}
	return nil
}

// Cell returns the value of col in row, "" when the row is short.
func (m HeaderMap) Cell(row []string, col string) string {
	i, ok := m[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// RowFromRecord lays rec out in Headers order.
func RowFromRecord(rec domain.ContactRecord) []string {
	s := rec.Socials
	return []string{
		rec.EmploymentType,
		rec.CompanyName,
		rec.CompanyCountry,
		rec.CompanyWebsite,
		rec.PostedAt,
		util.JoinList(rec.Phones),
		util.JoinList(rec.Emails),
		rec.Title,
		s.LinkedIn,
		rec.Link,
		rec.FullCompanyAddress,
		s.Twitter,
		s.Instagram,
		s.Facebook,
		s.YouTube,
		s.TikTok,
		s.Pinterest,
		s.Discord,
		string(rec.EmailStatus),
		string(rec.WhatsAppStatus),
	}
}

// RecordFromRow reads a record through the header map, so column order in
// the sheet does not matter.
func RecordFromRow(m HeaderMap, row []string) domain.ContactRecord {
	return domain.ContactRecord{
		EmploymentType:     m.Cell(row, "employmentType"),
		CompanyName:        m.Cell(row, "companyName"),
		CompanyCountry:     m.Cell(row, "companyCountry"),
		CompanyWebsite:     m.Cell(row, "companyWebsite"),
		PostedAt:           m.Cell(row, "postedAt"),
		Title:              m.Cell(row, "title"),
		Link:               m.Cell(row, "link"),
		FullCompanyAddress: m.Cell(row, "fullCompanyAddress"),
		Contacts: domain.Contacts{
			Emails: util.SplitList(m.Cell(row, "emails")),
			Phones: util.SplitList(m.Cell(row, "phones")),
			Socials: domain.Socials{
				LinkedIn:  m.Cell(row, "linkedin"),
				Twitter:   m.Cell(row, "twitter"),
				Instagram: m.Cell(row, "instagram"),
				Facebook:  m.Cell(row, "facebook"),
				YouTube:   m.Cell(row, "youtube"),
				TikTok:    m.Cell(row, "tiktok"),
				Pinterest: m.Cell(row, "pinterest"),
				Discord:   m.Cell(row, "discord"),
			},
		},
		EmailStatus:    domain.OutreachStatus(m.Cell(row, "email_status")),
		WhatsAppStatus: domain.OutreachStatus(m.Cell(row, "whatsapp_status")),
	}
}

// Sender pool columns.
var SenderHeaders = []string{
	"id", "type", "is_active", "password", "host", "port", "resume_filename", "email_subject", "api_key",
}

// Send log columns.
var SendLogHeaders = []string{"sender_id", "service_type", "recipient", "timestamp"}
