package store

import (
	"context"
	"fmt"
	"time"

	"leadgen-engine/internal/domain"
)

func (d *DB) CountSends(ctx context.Context, senderID string, ch domain.Channel, since time.Time) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `
SELECT COUNT(*) FROM send_log
WHERE sender_id = ? AND channel = ? AND sent_at >= ?;`,
		senderID, string(ch), since.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sends: %w", err)
	}
	return n, nil
}

func (d *DB) LogSend(ctx context.Context, e domain.SendLogEntry) error {
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO send_log (sender_id, channel, recipient, sent_at)
VALUES (?, ?, ?, ?);`,
		e.SenderID, string(e.Channel), e.Recipient, e.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("log send: %w", err)
	}
	return nil
}

// PruneSendLog deletes entries older than before. They no longer count
// toward any window.
func (d *DB) PruneSendLog(ctx context.Context, before time.Time) (deleted int64, err error) {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM send_log WHERE sent_at < ?;`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune send log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
