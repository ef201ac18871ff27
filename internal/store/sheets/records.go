package sheets

import (
	"context"
	"fmt"
	"sync"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/store"
)

// Records is the records worksheet.
type Records struct {
	v     Values
	sheet string

	mu      sync.Mutex
	headers store.HeaderMap
}

func NewRecords(v Values, sheet string) *Records {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &Records{v: v, sheet: sheet}
}

func (r *Records) AppendRecord(ctx context.Context, rec domain.ContactRecord) error {
	return r.v.Append(ctx, sheetRange(r.sheet)+"!A1", store.RowFromRecord(rec))
}

func (r *Records) PendingRecords(ctx context.Context, ch domain.Channel) ([]domain.ContactRecord, error) {
	hm, rows, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := hm.Require(ch.StatusColumn()); err != nil {
		return nil, err
	}

	var out []domain.ContactRecord
	for i, row := range rows {
		if domain.OutreachStatus(hm.Cell(row, ch.StatusColumn())) != domain.StatusPending {
			continue
		}
		rec := store.RecordFromRow(hm, row)
		rec.Row = i + 2 // header is row 1
		out = append(out, rec)
	}
	return out, nil
}

func (r *Records) UpdateStatus(ctx context.Context, row int, ch domain.Channel, status domain.OutreachStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	hm, err := r.headerMap(ctx)
	if err != nil {
		return err
	}
	col, ok := hm[ch.StatusColumn()]
	if !ok {
		return fmt.Errorf("%w: %q", store.ErrColumnMissing, ch.StatusColumn())
	}
	return r.v.Update(ctx, cellRange(r.sheet, col, row), string(status))
}

func (r *Records) JobLinks(ctx context.Context) (map[string]struct{}, error) {
	hm, rows, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := hm.Require("link"); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if l := hm.Cell(row, "link"); l != "" {
			out[l] = struct{}{}
		}
	}
	return out, nil
}

func (r *Records) readAll(ctx context.Context) (store.HeaderMap, [][]string, error) {
	vals, err := r.v.Get(ctx, sheetRange(r.sheet))
	if err != nil {
		return nil, nil, err
	}
	if len(vals) == 0 {
		return nil, nil, fmt.Errorf("%w: worksheet %q has no header row", store.ErrColumnMissing, r.sheet)
	}
	hm := store.NewHeaderMap(vals[0])

	r.mu.Lock()
	r.headers = hm
	r.mu.Unlock()

	return hm, vals[1:], nil
}

func (r *Records) headerMap(ctx context.Context) (store.HeaderMap, error) {
	r.mu.Lock()
	hm := r.headers
	r.mu.Unlock()
	if hm != nil {
		return hm, nil
	}

	vals, err := r.v.Get(ctx, sheetRange(r.sheet)+"!1:1")
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: worksheet %q has no header row", store.ErrColumnMissing, r.sheet)
	}
	hm = store.NewHeaderMap(vals[0])

	r.mu.Lock()
	r.headers = hm
	r.mu.Unlock()
	return hm, nil
}
