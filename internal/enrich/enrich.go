// Package enrich finds contact details (emails, phones, social links) for a
// company website.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
)

var ErrEnrichment = errors.New("enrichment failed")

// raw is the un-normalized union of everything a source found.
type raw struct {
	Emails     []string
	Phones     []string
	LinkedIns  []string
	Twitters   []string
	Instagrams []string
	Facebooks  []string
	YouTubes   []string
	TikToks    []string
	Pinterests []string
	Discords   []string
}

func (r *raw) merge(o raw) {
	r.Emails = append(r.Emails, o.Emails...)
	r.Phones = append(r.Phones, o.Phones...)
	r.LinkedIns = append(r.LinkedIns, o.LinkedIns...)
	r.Twitters = append(r.Twitters, o.Twitters...)
	r.Instagrams = append(r.Instagrams, o.Instagrams...)
	r.Facebooks = append(r.Facebooks, o.Facebooks...)
	r.YouTubes = append(r.YouTubes, o.YouTubes...)
	r.TikToks = append(r.TikToks, o.TikToks...)
	r.Pinterests = append(r.Pinterests, o.Pinterests...)
	r.Discords = append(r.Discords, o.Discords...)
}

func (r raw) contacts() domain.Contacts {
	return domain.Contacts{
		Emails: util.CleanEmails(r.Emails),
		Phones: util.CleanPhones(r.Phones),
		Socials: domain.Socials{
			LinkedIn:  util.FirstLink(r.LinkedIns),
			Twitter:   util.FirstLink(r.Twitters),
			Instagram: util.FirstLink(r.Instagrams),
			Facebook:  util.FirstLink(r.Facebooks),
			YouTube:   util.FirstLink(r.YouTubes),
			TikTok:    util.FirstLink(r.TikToks),
			Pinterest: util.FirstLink(r.Pinterests),
			Discord:   util.FirstLink(r.Discords),
		},
	}
}

// Chain tries enrichers in order and returns the first non-empty result.
// It fails only when every enricher failed.
type Chain struct {
	enrichers []types.Enricher
	log       logger.Logger
}

func NewChain(log logger.Logger, enrichers ...types.Enricher) *Chain {
	if log == nil {
		log = logger.NewNop()
	}
	return &Chain{enrichers: enrichers, log: log}
}

func (c *Chain) Enrich(ctx context.Context, website string) (domain.Contacts, error) {
	var errs []error
	failed := 0
	for i, e := range c.enrichers {
		got, err := e.Enrich(ctx, website)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Contacts{}, fmt.Errorf("%w: %w", ErrEnrichment, ctx.Err())
			}
			failed++
			errs = append(errs, err)
			c.log.Debug("enricher failed, trying next",
				logger.Int("index", i),
				logger.String("website", website),
				logger.Error(err),
			)
			continue
		}
		if !got.Empty() {
			return got, nil
		}
	}
	if failed > 0 && failed == len(c.enrichers) {
		return domain.Contacts{}, fmt.Errorf("%w: %s: %w", ErrEnrichment, website, errors.Join(errs...))
	}
	return domain.Contacts{}, nil
}
