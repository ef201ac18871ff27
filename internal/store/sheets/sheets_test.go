package sheets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/store"
)

// fakeValues is an in-memory spreadsheet keyed by worksheet name.
type fakeValues struct {
	mu      sync.Mutex
	sheets  map[string][][]string
	updates map[string]string
	gets    int
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]string{}, updates: map[string]string{}}
}

func sheetOf(rng string) string {
	name := strings.SplitN(rng, "!", 2)[0]
	return strings.ReplaceAll(strings.Trim(name, "'"), "''", "'")
}

func (f *fakeValues) Get(_ context.Context, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	rows := f.sheets[sheetOf(rng)]
	if strings.HasSuffix(rng, "!1:1") && len(rows) > 0 {
		return rows[:1], nil
	}
	return rows, nil
}

func (f *fakeValues) Append(_ context.Context, rng string, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := sheetOf(rng)
	f.sheets[name] = append(f.sheets[name], row)
	return nil
}

func (f *fakeValues) Update(_ context.Context, rng string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[rng] = value
	return nil
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(0))
	assert.Equal(t, "T", columnLetter(19))
	assert.Equal(t, "Z", columnLetter(25))
	assert.Equal(t, "AA", columnLetter(26))
	assert.Equal(t, "'Senders Log'!B3", cellRange("Senders Log", 1, 3))
}

func TestRecordsPendingAndUpdate(t *testing.T) {
	fv := newFakeValues()
	fv.sheets["Sheet1"] = [][]string{store.Headers}
	recs := NewRecords(fv, "")
	ctx := context.Background()

	a := domain.NewContactRecord(domain.Posting{CompanyName: "A", JobURL: "https://jobs/a"}, domain.Contacts{Emails: []string{"a@a.io"}})
	b := domain.NewContactRecord(domain.Posting{CompanyName: "B", JobURL: "https://jobs/b"}, domain.Contacts{Phones: []string{"123"}})
	b.EmailStatus = domain.StatusSent
	require.NoError(t, recs.AppendRecord(ctx, a))
	require.NoError(t, recs.AppendRecord(ctx, b))

	pending, err := recs.PendingRecords(ctx, domain.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "A", pending[0].CompanyName)
	assert.Equal(t, 2, pending[0].Row)

	require.NoError(t, recs.UpdateStatus(ctx, pending[0].Row, domain.ChannelEmail, domain.StatusSent))
	assert.Equal(t, "Sent", fv.updates["'Sheet1'!S2"])

	require.NoError(t, recs.UpdateStatus(ctx, 3, domain.ChannelWhatsApp, domain.StatusSkipped))
	assert.Equal(t, "Skipped", fv.updates["'Sheet1'!T3"])

	links, err := recs.JobLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestRecordsMissingColumn(t *testing.T) {
	fv := newFakeValues()
	fv.sheets["Sheet1"] = [][]string{{"companyName", "emails"}}
	recs := NewRecords(fv, "Sheet1")

	_, err := recs.JobLinks(context.Background())
	assert.ErrorIs(t, err, store.ErrColumnMissing)

	_, err = recs.PendingRecords(context.Background(), domain.ChannelEmail)
	assert.ErrorIs(t, err, store.ErrColumnMissing)
}

func TestSenderPoolParsesRows(t *testing.T) {
	fv := newFakeValues()
	fv.sheets["Senders Pool"] = [][]string{
		store.SenderHeaders,
		{"s1", "email", "TRUE", "pw", "smtp.acme.io", "587", "cv.pdf", "Hello", ""},
		{"s2", "whatsapp", "FALSE", "", "", "", "cv.pdf", "", "key"},
		{"", "email", "TRUE"},
		{"s3", "fax", "TRUE"},
	}
	got, err := NewSenderPool(fv, "").Senders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Sender{
		ID: "s1", Channel: domain.ChannelEmail, Active: true, Password: "pw",
		Host: "smtp.acme.io", Port: 587, AttachmentFile: "cv.pdf", Subject: "Hello",
	}, got[0])
	assert.False(t, got[1].Active)
	assert.Equal(t, "key", got[1].APIKey)
}

func TestSendLogCountsTrailingWindowAndCaches(t *testing.T) {
	fv := newFakeValues()
	now := time.Now().UTC()
	fv.sheets["Senders Log"] = [][]string{
		store.SendLogHeaders,
		{"s1", "email", "a@x.io", now.Add(-30 * time.Hour).Format(timestampLayout)},
		{"s1", "email", "b@x.io", now.Add(-1 * time.Hour).Format(timestampLayout)},
		{"s1", "whatsapp", "+1", now.Add(-1 * time.Hour).Format(timestampLayout)},
		{"s1", "email", "c@x.io", "not a time"},
	}
	log := NewSendLog(fv, "", time.Hour)
	ctx := context.Background()
	since := now.Add(-24 * time.Hour)

	n, err := log.CountSends(ctx, "s1", domain.ChannelEmail, since)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, log.LogSend(ctx, domain.SendLogEntry{SenderID: "s1", Channel: domain.ChannelEmail, Recipient: "d@x.io", At: now}))

	n, err = log.CountSends(ctx, "s1", domain.ChannelEmail, since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, fv.gets, "sheet read once per cache period")
	assert.Len(t, fv.sheets["Senders Log"], 6)
}

type failingValues struct{ fakeValues }

func (f *failingValues) Get(context.Context, string) ([][]string, error) {
	return nil, errors.New("quota exceeded")
}

func TestSendLogPropagatesReadErrors(t *testing.T) {
	log := NewSendLog(&failingValues{}, "", 0)
	_, err := log.CountSends(context.Background(), "s1", domain.ChannelEmail, time.Now())
	assert.Error(t, err)
}
