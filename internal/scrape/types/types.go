package types

import (
	"context"
	"iter"

	"leadgen-engine/internal/domain"
)

// Query is one (job, country) search.
type Query struct {
	Job        string
	Country    string
	MaxResults int
	ProxyType  string
}

// JobSource streams postings for a query. The sequence ends after the
// first error; postings yielded before it remain valid.
type JobSource interface {
	SearchStreaming(ctx context.Context, q Query) iter.Seq2[domain.Posting, error]
}

// Enricher looks up contact details for a company website.
type Enricher interface {
	Enrich(ctx context.Context, website string) (domain.Contacts, error)
}
