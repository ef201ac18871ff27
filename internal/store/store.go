package store

import (
	"context"
	"errors"

	"leadgen-engine/internal/domain"
)

// ErrDuplicate is returned by AppendRecord when the job link is already
// stored.
var ErrDuplicate = errors.New("record already stored")

// RecordStore is the table of enriched contact records.
type RecordStore interface {
	AppendRecord(ctx context.Context, rec domain.ContactRecord) error
	// PendingRecords is a single read snapshot of rows whose status for ch
	// is Pending.
	PendingRecords(ctx context.Context, ch domain.Channel) ([]domain.ContactRecord, error)
	UpdateStatus(ctx context.Context, row int, ch domain.Channel, status domain.OutreachStatus) error
	// JobLinks returns every job link already stored.
	JobLinks(ctx context.Context) (map[string]struct{}, error)
}

// SenderPool lists the configured sender identities.
type SenderPool interface {
	Senders(ctx context.Context) ([]domain.Sender, error)
}

// ActiveSenders filters a pool for one channel, preserving order.
func ActiveSenders(ctx context.Context, pool SenderPool, ch domain.Channel) ([]domain.Sender, error) {
	all, err := pool.Senders(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Sender
	for _, s := range all {
		if s.Active && s.Channel == ch {
			out = append(out, s)
		}
	}
	return out, nil
}

// StaticPool is a sender pool held in memory, e.g. loaded from config.
type StaticPool []domain.Sender

func (p StaticPool) Senders(context.Context) ([]domain.Sender, error) {
	out := make([]domain.Sender, len(p))
	copy(out, p)
	return out, nil
}
