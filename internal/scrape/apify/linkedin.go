package apify

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
)

// JobSource searches LinkedIn through a job scraper actor.
type JobSource struct {
	c       *Client
	actorID string
	opts    RunOptions
	log     logger.Logger
}

func NewJobSource(c *Client, actorID string, log logger.Logger) *JobSource {
	if log == nil {
		log = logger.NewNop()
	}
	return &JobSource{
		c:       c,
		actorID: actorID,
		opts:    RunOptions{MemoryMB: 512, TimeoutSec: 600},
		log:     log.With(logger.String("component", "apify_jobs")),
	}
}

// WithRunOptions overrides the actor's memory and timeout; zero values keep
// the defaults.
func (s *JobSource) WithRunOptions(o RunOptions) *JobSource {
	s.opts = o.merge(s.opts)
	return s
}

type linkedInItem struct {
	Title          string `json:"title"`
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	JobURL         string `json:"job_url"`
	EmploymentType string `json:"employment_type"`
	PostedAt       string `json:"posted_datetime"`
	Street         string `json:"company_street"`
	Locality       string `json:"company_locality"`
}

func searchInput(q types.Query) map[string]any {
	proxy := strings.ToUpper(strings.TrimSpace(q.ProxyType))
	if proxy == "" {
		proxy = "DATACENTER"
	}
	return map[string]any{
		"search_url":              util.LinkedInSearchURL(q.Job, q.Country),
		"include_company_details": true,
		"max_results":             q.MaxResults,
		"proxy_group":             proxy,
		"maxConcurrency":          1,
		"headless":                true,
		"debugMode":               false,
		"saveScreenshots":         false,
		"saveHtml":                false,
		"useApifyProxy":           true,
	}
}

func (s *JobSource) SearchStreaming(ctx context.Context, q types.Query) iter.Seq2[domain.Posting, error] {
	return func(yield func(domain.Posting, error) bool) {
		n := 0
		for raw, err := range s.c.Items(ctx, s.actorID, searchInput(q), s.opts) {
			if err != nil {
				yield(domain.Posting{}, err)
				return
			}
			var it linkedInItem
			if err := json.Unmarshal(raw, &it); err != nil {
				s.log.Warn("skipping malformed dataset item", logger.Error(err))
				continue
			}
			n++
			p := domain.Posting{
				Title:          util.CleanText(it.Title),
				CompanyName:    util.CleanText(it.CompanyName),
				CompanyWebsite: strings.TrimSpace(it.CompanyWebsite),
				JobURL:         strings.TrimSpace(it.JobURL),
				EmploymentType: it.EmploymentType,
				PostedAt:       it.PostedAt,
				Street:         strings.TrimSpace(it.Street),
				Locality:       strings.TrimSpace(it.Locality),
				Country:        q.Country,
			}
			if !yield(p, nil) {
				return
			}
		}
		s.log.Debug("search finished",
			logger.String("job", q.Job),
			logger.String("country", q.Country),
			logger.Int("postings", n),
		)
	}
}
