package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/apify"
)

// ApifyEnricher runs a contact-details crawler actor against the website.
type ApifyEnricher struct {
	c       *apify.Client
	actorID string
	opts    apify.RunOptions
}

func NewApifyEnricher(c *apify.Client, actorID string) *ApifyEnricher {
	return &ApifyEnricher{
		c:       c,
		actorID: actorID,
		opts:    apify.RunOptions{MemoryMB: 512, TimeoutSec: 600},
	}
}

func (e *ApifyEnricher) WithRunOptions(o apify.RunOptions) *ApifyEnricher {
	if o.MemoryMB > 0 {
		e.opts.MemoryMB = o.MemoryMB
	}
	if o.TimeoutSec > 0 {
		e.opts.TimeoutSec = o.TimeoutSec
	}
	return e
}

type contactItem struct {
	Emails          []string `json:"emails"`
	Phones          []string `json:"phones"`
	PhonesUncertain []string `json:"phonesUncertain"`
	LinkedIns       []string `json:"linkedIns"`
	Twitters        []string `json:"twitters"`
	Instagrams      []string `json:"instagrams"`
	Facebooks       []string `json:"facebooks"`
	YouTubes        []string `json:"youtubes"`
	TikToks         []string `json:"tiktoks"`
	Pinterests      []string `json:"pinterests"`
	Discords        []string `json:"discords"`
}

func contactInput(website string) map[string]any {
	return map[string]any{
		"startUrls":           []map[string]string{{"url": website, "method": "GET"}},
		"maxDepth":            2,
		"maxRequests":         5,
		"sameDomain":          true,
		"considerChildFrames": true,
		"maxConcurrency":      1,
		"saveScreenshots":     false,
		"debugMode":           false,
		"ignoreSslErrors":     true,
		"maxRequestRetries":   3,
	}
}

func (a *ApifyEnricher) Enrich(ctx context.Context, website string) (domain.Contacts, error) {
	var agg raw
	for msg, err := range a.c.Items(ctx, a.actorID, contactInput(website), a.opts) {
		if err != nil {
			return domain.Contacts{}, fmt.Errorf("%w: %w", ErrEnrichment, err)
		}
		var it contactItem
		if err := json.Unmarshal(msg, &it); err != nil {
			continue
		}
		agg.merge(raw{
			Emails:     it.Emails,
			Phones:     append(it.Phones, it.PhonesUncertain...),
			LinkedIns:  it.LinkedIns,
			Twitters:   it.Twitters,
			Instagrams: it.Instagrams,
			Facebooks:  it.Facebooks,
			YouTubes:   it.YouTubes,
			TikToks:    it.TikToks,
			Pinterests: it.Pinterests,
			Discords:   it.Discords,
		})
	}
	return agg.contacts(), nil
}
