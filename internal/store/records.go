package store

import (
	"context"
	"fmt"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

const recordColumns = `id, employment_type, company_name, company_country, company_website, posted_at,
phones, emails, title, linkedin, link, full_company_address,
twitter, instagram, facebook, youtube, tiktok, pinterest, discord,
email_status, whatsapp_status`

func (d *DB) AppendRecord(ctx context.Context, rec domain.ContactRecord) error {
	s := rec.Socials
	res, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO records (employment_type, company_name, company_country, company_website, posted_at,
  phones, emails, title, linkedin, link, full_company_address,
  twitter, instagram, facebook, youtube, tiktok, pinterest, discord,
  email_status, whatsapp_status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.EmploymentType, rec.CompanyName, rec.CompanyCountry, rec.CompanyWebsite, rec.PostedAt,
		util.JoinList(rec.Phones), util.JoinList(rec.Emails), rec.Title, s.LinkedIn, rec.Link, rec.FullCompanyAddress,
		s.Twitter, s.Instagram, s.Facebook, s.YouTube, s.TikTok, s.Pinterest, s.Discord,
		string(rec.EmailStatus), string(rec.WhatsAppStatus),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.Link)
	}
	return nil
}

func (d *DB) PendingRecords(ctx context.Context, ch domain.Channel) ([]domain.ContactRecord, error) {
	// column name comes from a closed set, not user input
	query := fmt.Sprintf(`SELECT %s FROM records WHERE %s = ? ORDER BY id;`, recordColumns, ch.StatusColumn())

	rows, err := d.Pool.QueryContext(ctx, query, string(domain.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContactRecord
	for rows.Next() {
		var (
			r              domain.ContactRecord
			phones, emails string
			es, ws         string
		)
		if err := rows.Scan(
			&r.Row, &r.EmploymentType, &r.CompanyName, &r.CompanyCountry, &r.CompanyWebsite, &r.PostedAt,
			&phones, &emails, &r.Title, &r.Socials.LinkedIn, &r.Link, &r.FullCompanyAddress,
			&r.Socials.Twitter, &r.Socials.Instagram, &r.Socials.Facebook, &r.Socials.YouTube,
			&r.Socials.TikTok, &r.Socials.Pinterest, &r.Socials.Discord,
			&es, &ws,
		); err != nil {
			return nil, err
		}
		r.Phones = util.SplitList(phones)
		r.Emails = util.SplitList(emails)
		r.EmailStatus = domain.OutreachStatus(es)
		r.WhatsAppStatus = domain.OutreachStatus(ws)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) UpdateStatus(ctx context.Context, row int, ch domain.Channel, status domain.OutreachStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	query := fmt.Sprintf(`UPDATE records SET %s = ? WHERE id = ?;`, ch.StatusColumn())
	res, err := d.Pool.ExecContext(ctx, query, string(status), row)
	if err != nil {
		return fmt.Errorf("update %s: %w", ch.StatusColumn(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s: row %d not found", ch.StatusColumn(), row)
	}
	return nil
}

func (d *DB) JobLinks(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT link FROM records WHERE link != '';`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out[l] = struct{}{}
	}
	return out, rows.Err()
}
