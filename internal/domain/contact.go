package domain

// OutreachStatus is the per-channel state of a record.
type OutreachStatus string

const (
	StatusPending OutreachStatus = "Pending"
	StatusSent    OutreachStatus = "Sent"
	StatusFailed  OutreachStatus = "Failed"
	StatusSkipped OutreachStatus = "Skipped"
)

func (s OutreachStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Socials holds at most one link per network.
type Socials struct {
	LinkedIn  string
	Twitter   string
	Instagram string
	Facebook  string
	YouTube   string
	TikTok    string
	Pinterest string
	Discord   string
}

// Contacts is what enrichment finds for a company website.
type Contacts struct {
	Emails  []string
	Phones  []string
	Socials Socials
}

func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && c.Socials == (Socials{})
}

// ContactRecord is one row of the records store. Row is the 1-based sheet
// row (or primary key for SQLite); zero until persisted.
type ContactRecord struct {
	Row int

	EmploymentType     string
	CompanyName        string
	CompanyCountry     string
	CompanyWebsite     string
	PostedAt           string
	Title              string
	Link               string
	FullCompanyAddress string

	Contacts

	EmailStatus    OutreachStatus
	WhatsAppStatus OutreachStatus
}

// Status returns the record's status for ch.
func (r ContactRecord) Status(ch Channel) OutreachStatus {
	if ch == ChannelWhatsApp {
		return r.WhatsAppStatus
	}
	return r.EmailStatus
}

// NewContactRecord builds a Pending record from a posting and its contacts.
func NewContactRecord(p Posting, c Contacts) ContactRecord {
	return ContactRecord{
		EmploymentType:     p.EmploymentType,
		CompanyName:        p.CompanyName,
		CompanyCountry:     p.Country,
		CompanyWebsite:     p.CompanyWebsite,
		PostedAt:           p.PostedAt,
		Title:              p.Title,
		Link:               p.JobURL,
		FullCompanyAddress: p.FullAddress(),
		Contacts:           c,
		EmailStatus:        StatusPending,
		WhatsAppStatus:     StatusPending,
	}
}
