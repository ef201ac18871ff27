package sheets

import (
	"context"
	"sync"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/store"
)

const timestampLayout = "2006-01-02 15:04:05"

// SendLog is the "Senders Log" worksheet. Rows are read once and cached;
// sends logged through this process are appended to the cache, so the
// sheet is only re-read after maxAge.
type SendLog struct {
	v      Values
	sheet  string
	maxAge time.Duration

	mu       sync.Mutex
	loadedAt time.Time
	entries  []domain.SendLogEntry
}

func NewSendLog(v Values, sheet string, maxAge time.Duration) *SendLog {
	if sheet == "" {
		sheet = "Senders Log"
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &SendLog{v: v, sheet: sheet, maxAge: maxAge}
}

func (l *SendLog) CountSends(ctx context.Context, senderID string, ch domain.Channel, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range l.entries {
		if e.SenderID == senderID && e.Channel == ch && !e.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *SendLog) LogSend(ctx context.Context, e domain.SendLogEntry) error {
	row := []string{e.SenderID, string(e.Channel), e.Recipient, e.At.UTC().Format(timestampLayout)}
	if err := l.v.Append(ctx, sheetRange(l.sheet)+"!A1", row); err != nil {
		return err
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return nil
}

func (l *SendLog) loadLocked(ctx context.Context) error {
	if !l.loadedAt.IsZero() && time.Since(l.loadedAt) < l.maxAge {
		return nil
	}
	vals, err := l.v.Get(ctx, sheetRange(l.sheet))
	if err != nil {
		return err
	}

	var entries []domain.SendLogEntry
	if len(vals) > 0 {
		hm := store.NewHeaderMap(vals[0])
		if err := hm.Require("sender_id", "timestamp"); err != nil {
			return err
		}
		for _, row := range vals[1:] {
			at, err := time.ParseInLocation(timestampLayout, hm.Cell(row, "timestamp"), time.UTC)
			if err != nil {
				continue // unparseable rows never count
			}
			ch, err := domain.ParseChannel(hm.Cell(row, "service_type"))
			if err != nil {
				continue
			}
			entries = append(entries, domain.SendLogEntry{
				SenderID:  hm.Cell(row, "sender_id"),
				Channel:   ch,
				Recipient: hm.Cell(row, "recipient"),
				At:        at,
			})
		}
	}
	l.entries = entries
	l.loadedAt = time.Now()
	return nil
}
