// Package scrape turns job searches into enriched contact records.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/metrics"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/store"
	"leadgen-engine/internal/task"
)

const (
	DefaultMaxResults = 30
	DefaultProxyType  = "DATACENTER"

	defaultEnrichEvery      = 2 * time.Second
	defaultCombinationPause = 5 * time.Second

	// all enrichment calls share one pacing bucket
	enrichKey = "enrich"
)

var ErrInvalidRequest = errors.New("invalid scrape request")

// Request is the payload of a scraping task.
type Request struct {
	Jobs       []string `json:"job"`
	Countries  []string `json:"country"`
	MaxResults int      `json:"max_results"`
	ProxyType  string   `json:"proxy_type"`
}

func (r Request) withDefaults() Request {
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultMaxResults
	}
	if r.ProxyType == "" {
		r.ProxyType = DefaultProxyType
	}
	return r
}

func (r Request) Validate() error {
	if len(uniqueNonBlank(r.Jobs)) == 0 {
		return fmt.Errorf("%w: job is required", ErrInvalidRequest)
	}
	if len(uniqueNonBlank(r.Countries)) == 0 {
		return fmt.Errorf("%w: country is required", ErrInvalidRequest)
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("%w: max_results must not be negative", ErrInvalidRequest)
	}
	return nil
}

func asRequest(payload any) (Request, error) {
	switch p := payload.(type) {
	case Request:
		return p, nil
	case *Request:
		if p == nil {
			return Request{}, fmt.Errorf("%w: empty payload", ErrInvalidRequest)
		}
		return *p, nil
	default:
		return Request{}, fmt.Errorf("%w: unexpected payload %T", ErrInvalidRequest, payload)
	}
}

// Pipeline is the task.Runner for scraping tasks.
type Pipeline struct {
	source   types.JobSource
	enricher types.Enricher
	records  store.RecordStore
	log      logger.Logger
	metrics  *metrics.Metrics

	pacer *util.HostLimiter
	pause time.Duration
}

type Option func(*Pipeline)

// WithEnrichInterval sets the minimum gap between two enrichment calls.
func WithEnrichInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.pacer = util.EveryInterval(d) }
}

// WithCombinationPause sets the wait between two searches.
func WithCombinationPause(d time.Duration) Option {
	return func(p *Pipeline) { p.pause = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(source types.JobSource, enricher types.Enricher, records store.RecordStore, log logger.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	p := &Pipeline{
		source:   source,
		enricher: enricher,
		records:  records,
		log:      log.With(logger.String("component", "scrape")),
		pacer:    util.EveryInterval(defaultEnrichEvery),
		pause:    defaultCombinationPause,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) Kind() task.Kind { return task.KindScraping }

func (p *Pipeline) Validate(payload any) error {
	req, err := asRequest(payload)
	if err != nil {
		return err
	}
	return req.Validate()
}

func (p *Pipeline) Run(ctx context.Context, payload any, rep task.Reporter) error {
	req, err := asRequest(payload)
	if err != nil {
		return err
	}
	req = req.withDefaults()

	existing, err := p.records.JobLinks(ctx)
	if err != nil {
		return fmt.Errorf("load existing job links: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for link := range existing {
		seen[util.CanonicalURL(link)] = struct{}{}
	}

	combos := Combinations(req.Jobs, req.Countries)
	n := len(combos)
	for i, c := range combos {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Progress(fmt.Sprintf("processing %d/%d: '%s' in '%s'", i+1, n, c.Job, c.Country))

		q := types.Query{Job: c.Job, Country: c.Country, MaxResults: req.MaxResults, ProxyType: req.ProxyType}
		if err := p.runCombination(ctx, q, seen, rep); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.metrics.CombinationFailed()
			p.log.Error("combination failed",
				logger.String("job", c.Job),
				logger.String("country", c.Country),
				logger.Error(err),
			)
		}

		if i < n-1 && p.pause > 0 {
			if err := sleep(ctx, p.pause); err != nil {
				return err
			}
		}
	}

	rep.Progress(fmt.Sprintf("completed all %d combinations", n))
	return nil
}

// runCombination consumes one search. The returned error is the search's
// own; per-posting problems are counted as skips.
func (p *Pipeline) runCombination(ctx context.Context, q types.Query, seen map[string]struct{}, rep task.Reporter) error {
	log := p.log.With(logger.String("job", q.Job), logger.String("country", q.Country))
	appended, skipped := 0, 0

	for posting, err := range p.source.SearchStreaming(ctx, q) {
		if err != nil {
			log.Info("combination partial", logger.Int("appended", appended), logger.Int("skipped", skipped))
			return err
		}
		posting.Country = q.Country

		if reason := p.handlePosting(ctx, posting, seen, log); reason != "" {
			skipped++
			p.metrics.PostingSkipped(reason)
			rep.Count(task.Summary{Skipped: 1})
			continue
		}
		appended++
		p.metrics.RecordAppended()
		rep.Count(task.Summary{Appended: 1})
	}

	log.Info("combination done", logger.Int("appended", appended), logger.Int("skipped", skipped))
	return nil
}

// handlePosting returns "" when a record was appended, otherwise the skip
// reason.
func (p *Pipeline) handlePosting(ctx context.Context, posting domain.Posting, seen map[string]struct{}, log logger.Logger) string {
	key := util.CanonicalURL(posting.JobURL)
	if key == "" {
		return "no_link"
	}
	if _, dup := seen[key]; dup {
		return "duplicate"
	}

	website := util.NormalizeWebsite(posting.CompanyWebsite)
	if website == "" {
		log.Debug("no company website", logger.String("link", posting.JobURL))
		return "no_website"
	}
	posting.CompanyWebsite = website

	if err := p.pacer.Wait(ctx, enrichKey); err != nil {
		return "cancelled"
	}
	contacts, err := p.enricher.Enrich(ctx, website)
	if err != nil {
		log.Warn("enrichment failed", logger.String("website", website), logger.Error(err))
		return "enrichment"
	}
	contacts.Emails = util.CleanEmails(contacts.Emails)
	contacts.Phones = util.CleanPhones(contacts.Phones)

	rec := domain.NewContactRecord(posting, contacts)
	if err := p.records.AppendRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			seen[key] = struct{}{}
			return "duplicate"
		}
		log.Warn("append record", logger.String("link", posting.JobURL), logger.Error(err))
		return "store"
	}
	seen[key] = struct{}{}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
