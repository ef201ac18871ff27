package scrape

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/metrics"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/store"
	"leadgen-engine/internal/task"
)

type fakeSource struct {
	mu       sync.Mutex
	postings map[string][]domain.Posting // keyed by job|country
	failures map[string]error
	queries  []types.Query
}

func (f *fakeSource) SearchStreaming(_ context.Context, q types.Query) iter.Seq2[domain.Posting, error] {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	key := q.Job + "|" + q.Country
	return func(yield func(domain.Posting, error) bool) {
		for _, p := range f.postings[key] {
			if !yield(p, nil) {
				return
			}
		}
		if err := f.failures[key]; err != nil {
			yield(domain.Posting{}, err)
		}
	}
}

type fakeEnricher struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeEnricher) Enrich(_ context.Context, website string) (domain.Contacts, error) {
	f.calls = append(f.calls, website)
	if f.fail[website] || f.fail["*"] {
		return domain.Contacts{}, errors.New("site unreachable")
	}
	return domain.Contacts{
		Emails: []string{"Info@Example.com ", "info@example.com"},
		Phones: []string{"+49 30 1234", "+49-30-1234"},
	}, nil
}

type fakeRecords struct {
	links   map[string]struct{}
	records []domain.ContactRecord
	linkErr error
	// stored by another writer after JobLinks was read
	raced map[string]bool
}

func (f *fakeRecords) AppendRecord(_ context.Context, rec domain.ContactRecord) error {
	if f.raced[rec.Link] {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, rec.Link)
	}
	rec.Row = len(f.records) + 2
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeRecords) PendingRecords(context.Context, domain.Channel) ([]domain.ContactRecord, error) {
	return f.records, nil
}

func (f *fakeRecords) UpdateStatus(context.Context, int, domain.Channel, domain.OutreachStatus) error {
	return nil
}

func (f *fakeRecords) JobLinks(context.Context) (map[string]struct{}, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	out := map[string]struct{}{}
	for l := range f.links {
		out[l] = struct{}{}
	}
	return out, nil
}

type recordingReporter struct {
	progress []string
	summary  task.Summary
}

func (r *recordingReporter) Progress(text string) { r.progress = append(r.progress, text) }

func (r *recordingReporter) Count(d task.Summary) {
	r.summary.Appended += d.Appended
	r.summary.Skipped += d.Skipped
}

func newTestPipeline(src types.JobSource, enr types.Enricher, rs store.RecordStore, opts ...Option) *Pipeline {
	opts = append([]Option{WithEnrichInterval(0), WithCombinationPause(0)}, opts...)
	return NewPipeline(src, enr, rs, logger.NewNop(), opts...)
}

func TestCombinationsRowMajor(t *testing.T) {
	got := Combinations([]string{"go", "rust", "go", " "}, []string{"Spain", "Germany"})
	assert.Equal(t, []Combination{
		{"go", "Spain"}, {"go", "Germany"},
		{"rust", "Spain"}, {"rust", "Germany"},
	}, got)
	assert.Empty(t, Combinations(nil, []string{"Spain"}))
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}.Validate())
	assert.ErrorIs(t, Request{Countries: []string{"Spain"}}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, Request{Jobs: []string{"go"}, Countries: []string{""}}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, Request{Jobs: []string{"go"}, Countries: []string{"x"}, MaxResults: -1}.Validate(), ErrInvalidRequest)

	p := newTestPipeline(&fakeSource{}, &fakeEnricher{}, &fakeRecords{})
	assert.ErrorIs(t, p.Validate("nope"), ErrInvalidRequest)
	assert.NoError(t, p.Validate(&Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}))
}

func TestPipelineEndToEndWithSQLite(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "leadgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src := &fakeSource{postings: map[string][]domain.Posting{
		"Python Developer|Germany": {
			{Title: "Python Developer", CompanyName: "Acme", CompanyWebsite: "acme.io", JobURL: "https://www.linkedin.com/jobs/view/1"},
			{Title: "Python Developer", CompanyName: "NoSite", JobURL: "https://www.linkedin.com/jobs/view/2"},
		},
	}}
	rep := &recordingReporter{}
	p := newTestPipeline(src, &fakeEnricher{}, db)

	err = p.Run(context.Background(), Request{
		Jobs: []string{"Python Developer"}, Countries: []string{"Germany"}, MaxResults: 2,
	}, rep)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"processing 1/1: 'Python Developer' in 'Germany'",
		"completed all 1 combinations",
	}, rep.progress)
	assert.Equal(t, task.Summary{Appended: 1, Skipped: 1}, rep.summary)

	require.Len(t, src.queries, 1)
	assert.Equal(t, 2, src.queries[0].MaxResults)
	assert.Equal(t, DefaultProxyType, src.queries[0].ProxyType)

	pending, err := db.PendingRecords(context.Background(), domain.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	rec := pending[0]
	assert.Equal(t, "Acme", rec.CompanyName)
	assert.Equal(t, "Germany", rec.CompanyCountry)
	assert.Equal(t, "https://acme.io", rec.CompanyWebsite)
	assert.Equal(t, []string{"info@example.com"}, rec.Emails)
	assert.Equal(t, []string{"49301234"}, rec.Phones)
	assert.Equal(t, domain.StatusPending, rec.EmailStatus)
	assert.Equal(t, domain.StatusPending, rec.WhatsAppStatus)
}

func TestPipelineProgressFollowsCombinationOrder(t *testing.T) {
	src := &fakeSource{}
	rep := &recordingReporter{}
	p := newTestPipeline(src, &fakeEnricher{}, &fakeRecords{})

	require.NoError(t, p.Run(context.Background(), Request{
		Jobs: []string{"go", "rust"}, Countries: []string{"Spain", "Italy", "Spain"},
	}, rep))

	assert.Equal(t, []string{
		"processing 1/4: 'go' in 'Spain'",
		"processing 2/4: 'go' in 'Italy'",
		"processing 3/4: 'rust' in 'Spain'",
		"processing 4/4: 'rust' in 'Italy'",
		"completed all 4 combinations",
	}, rep.progress)
	require.Len(t, src.queries, 4)
	assert.Equal(t, DefaultMaxResults, src.queries[0].MaxResults)
}

func TestPipelineSkipsFailedEnrichmentAndCompletes(t *testing.T) {
	src := &fakeSource{postings: map[string][]domain.Posting{
		"go|Spain": {
			{CompanyWebsite: "a.io", JobURL: "https://jobs/1"},
			{CompanyWebsite: "b.io", JobURL: "https://jobs/2"},
		},
	}}
	rs := &fakeRecords{}
	rep := &recordingReporter{}
	p := newTestPipeline(src, &fakeEnricher{fail: map[string]bool{"*": true}}, rs)

	require.NoError(t, p.Run(context.Background(), Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}, rep))
	assert.Empty(t, rs.records)
	assert.Equal(t, task.Summary{Skipped: 2}, rep.summary)
	assert.Equal(t, "completed all 1 combinations", rep.progress[len(rep.progress)-1])
}

func TestPipelineSkipsDuplicateAndMissingLinks(t *testing.T) {
	src := &fakeSource{postings: map[string][]domain.Posting{
		"go|Spain": {
			{CompanyWebsite: "a.io", JobURL: "https://jobs/old?utm_source=x"},
			{CompanyWebsite: "a.io", JobURL: ""},
			{CompanyWebsite: "a.io", JobURL: "https://jobs/new"},
		},
		"go|Italy": {
			{CompanyWebsite: "a.io", JobURL: "https://jobs/new"},
		},
	}}
	rs := &fakeRecords{links: map[string]struct{}{"https://jobs/old": {}}}
	enr := &fakeEnricher{}
	rep := &recordingReporter{}
	p := newTestPipeline(src, enr, rs)

	require.NoError(t, p.Run(context.Background(), Request{Jobs: []string{"go"}, Countries: []string{"Spain", "Italy"}}, rep))
	require.Len(t, rs.records, 1)
	assert.Equal(t, "https://jobs/new", rs.records[0].Link)
	assert.Equal(t, "Spain", rs.records[0].CompanyCountry)
	assert.Len(t, enr.calls, 1)
	assert.Equal(t, task.Summary{Appended: 1, Skipped: 3}, rep.summary)
}

func TestPipelineCountsStoreDuplicateAsSkip(t *testing.T) {
	src := &fakeSource{postings: map[string][]domain.Posting{
		"go|Spain": {
			{CompanyWebsite: "a.io", JobURL: "https://jobs/raced"},
			{CompanyWebsite: "b.io", JobURL: "https://jobs/fresh"},
		},
	}}
	rs := &fakeRecords{raced: map[string]bool{"https://jobs/raced": true}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rep := &recordingReporter{}
	p := newTestPipeline(src, &fakeEnricher{}, rs, WithMetrics(m))

	require.NoError(t, p.Run(context.Background(), Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}, rep))
	require.Len(t, rs.records, 1)
	assert.Equal(t, "https://jobs/fresh", rs.records[0].Link)
	assert.Equal(t, task.Summary{Appended: 1, Skipped: 1}, rep.summary)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PostingsSkipped.WithLabelValues("duplicate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PostingsSkipped.WithLabelValues("store")))
}

func TestPipelineSearchErrorAbortsOnlyThatCombination(t *testing.T) {
	src := &fakeSource{
		postings: map[string][]domain.Posting{
			"go|Spain": {{CompanyWebsite: "a.io", JobURL: "https://jobs/1"}},
			"go|Italy": {{CompanyWebsite: "b.io", JobURL: "https://jobs/2"}},
		},
		failures: map[string]error{"go|Spain": errors.New("actor run FAILED")},
	}
	rs := &fakeRecords{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newTestPipeline(src, &fakeEnricher{}, rs, WithMetrics(m))

	require.NoError(t, p.Run(context.Background(), Request{Jobs: []string{"go"}, Countries: []string{"Spain", "Italy"}}, &recordingReporter{}))
	// the posting yielded before the failure is kept
	require.Len(t, rs.records, 2)
	assert.Equal(t, "https://jobs/1", rs.records[0].Link)
	assert.Equal(t, "https://jobs/2", rs.records[1].Link)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CombinationFails), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RecordsAppended), 0)
}

func TestPipelineFailsWhenLinksCannotBeRead(t *testing.T) {
	rs := &fakeRecords{linkErr: store.ErrColumnMissing}
	p := newTestPipeline(&fakeSource{}, &fakeEnricher{}, rs)
	err := p.Run(context.Background(), Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}, &recordingReporter{})
	assert.ErrorIs(t, err, store.ErrColumnMissing)
}

func TestPipelineStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{}
	p := newTestPipeline(src, &fakeEnricher{}, &fakeRecords{})
	err := p.Run(ctx, Request{Jobs: []string{"go"}, Countries: []string{"Spain"}}, &recordingReporter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.queries)
}

func TestPipelineUnderOrchestrator(t *testing.T) {
	src := &fakeSource{postings: map[string][]domain.Posting{
		"go|Spain": {{CompanyWebsite: "a.io", JobURL: "https://jobs/1"}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o := task.New(ctx, task.Config{MaxConcurrent: 1}, logger.NewNop())
	o.Register(newTestPipeline(src, &fakeEnricher{}, &fakeRecords{}))

	_, err := o.Submit(task.KindScraping, Request{})
	require.Error(t, err)

	id, err := o.Submit(task.KindScraping, Request{Jobs: []string{"go"}, Countries: []string{"Spain"}})
	require.NoError(t, err)
	o.Wait()

	got, err := o.Status(id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Summary.Appended)
}
