package sheets

import (
	"context"
	"strconv"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/store"
)

// SenderPool reads the "Senders Pool" worksheet on every call so edits to
// the sheet apply to the next campaign.
type SenderPool struct {
	v     Values
	sheet string
}

func NewSenderPool(v Values, sheet string) *SenderPool {
	if sheet == "" {
		sheet = "Senders Pool"
	}
	return &SenderPool{v: v, sheet: sheet}
}

func (p *SenderPool) Senders(ctx context.Context) ([]domain.Sender, error) {
	vals, err := p.v.Get(ctx, sheetRange(p.sheet))
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	hm := store.NewHeaderMap(vals[0])
	if err := hm.Require("id", "type"); err != nil {
		return nil, err
	}

	var out []domain.Sender
	for _, row := range vals[1:] {
		id := hm.Cell(row, "id")
		if id == "" {
			continue
		}
		ch, err := domain.ParseChannel(hm.Cell(row, "type"))
		if err != nil {
			continue
		}
		port, _ := strconv.Atoi(hm.Cell(row, "port"))
		out = append(out, domain.Sender{
			ID:             id,
			Channel:        ch,
			Active:         truthy(hm.Cell(row, "is_active")),
			Password:       hm.Cell(row, "password"),
			Host:           hm.Cell(row, "host"),
			Port:           port,
			AttachmentFile: hm.Cell(row, "resume_filename"),
			Subject:        hm.Cell(row, "email_subject"),
			APIKey:         hm.Cell(row, "api_key"),
		})
	}
	return out, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on", "active":
		return true
	}
	return false
}
