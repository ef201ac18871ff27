// Package sheets stores records, the sender pool and the send log in a
// Google Spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Values is the subset of the spreadsheet values API the stores need.
// Ranges are A1 notation.
type Values interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Append(ctx context.Context, rng string, row []string) error
	Update(ctx context.Context, rng string, value string) error
}

type apiValues struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewValues authenticates with a service account key file.
func NewValues(ctx context.Context, credentialsPath, spreadsheetID string) (Values, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is empty")
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &apiValues{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (a *apiValues) Get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = fmt.Sprint(c)
		}
		out[i] = cells
	}
	return out, nil
}

func (a *apiValues) Append(ctx context.Context, rng string, row []string) error {
	vals := make([]interface{}, len(row))
	for i, c := range row {
		vals[i] = c
	}
	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{vals},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (a *apiValues) Update(ctx context.Context, rng string, value string) error {
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// sheetRange quotes a worksheet name for A1 notation.
func sheetRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// cellRange addresses one cell; col is 0-based, row is 1-based.
func cellRange(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", sheetRange(sheet), columnLetter(col), row)
}

func columnLetter(col int) string {
	s := ""
	for col >= 0 {
		s = string(rune('A'+col%26)) + s
		col = col/26 - 1
	}
	return s
}
