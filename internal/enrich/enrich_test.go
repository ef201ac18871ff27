package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/retry"
	"leadgen-engine/internal/scrape/apify"
	"leadgen-engine/internal/scrape/util"
)

const homepage = `<html><body>
<header><a href="/contact-us">Contact</a><a href="https://other.example/contact">partner</a></header>
<p>Write to <a href="mailto:Hello@Acme.io?subject=hi">us</a> or call <a href="tel:+1 (555) 010-2000">now</a>.</p>
<footer>
 <a href="https://www.linkedin.com/company/acme">in</a>
 <a href="https://x.com/acme">x</a>
 <a href="https://www.instagram.com/acme">ig</a>
 <a href="https://discord.gg/acme">discord</a>
 <script>var fake = "nobody@script.io";</script>
</footer></body></html>`

const contactPage = `<html><body>
<p>Sales: sales@acme.io, hello@acme.io</p>
<p>Berlin office +49 30 1234 5678</p>
<a href="https://www.facebook.com/acme">fb</a>
</body></html>`

func TestHTMLEnricherHomepageAndContactPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, homepage) })
	mux.HandleFunc("/contact-us", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, contactPage) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := NewHTMLEnricher(srv.Client()).Enrich(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello@acme.io", "sales@acme.io"}, got.Emails)
	assert.Equal(t, []string{"15550102000", "493012345678"}, got.Phones)
	assert.Equal(t, "https://www.linkedin.com/company/acme", got.Socials.LinkedIn)
	assert.Equal(t, "https://x.com/acme", got.Socials.Twitter)
	assert.Equal(t, "https://www.instagram.com/acme", got.Socials.Instagram)
	assert.Equal(t, "https://www.facebook.com/acme", got.Socials.Facebook)
	assert.Equal(t, "https://discord.gg/acme", got.Socials.Discord)
	assert.Empty(t, got.Socials.YouTube)
}

func TestHTMLEnricherPacesFetchesPerHost(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, homepage)
	})
	mux.HandleFunc("/contact-us", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, contactPage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// one fetch per hour per host: the contact page cannot be reached
	// before the deadline, so only the homepage contributes.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	e := NewHTMLEnricher(srv.Client()).WithHostLimiter(util.EveryInterval(time.Hour))
	got, err := e.Enrich(ctx, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{"hello@acme.io"}, got.Emails)
}

func TestHTMLEnricherFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTMLEnricher(srv.Client()).Enrich(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrEnrichment)
}

func TestHTMLEnricherRejectsBadWebsite(t *testing.T) {
	_, err := NewHTMLEnricher(nil).Enrich(context.Background(), "::not a url")
	assert.ErrorIs(t, err, ErrEnrichment)
}

func TestApifyEnricherAggregatesItems(t *testing.T) {
	items := []map[string]any{
		{"emails": []string{" Info@Acme.io", "sales@acme.io"}, "phones": []string{"+1 555 010"}, "twitters": []string{"", "https://x.com/acme"}},
		{"emails": []string{"info@acme.io"}, "phonesUncertain": []string{"1-555-010", "+44 20 7946"}, "youtubes": []string{"https://youtube.com/@acme"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/{actor}/runs", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, true, in["sameDomain"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "r1", "status": "READY"}})
	})
	mux.HandleFunc("GET /actor-runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "r1", "status": "SUCCEEDED", "defaultDatasetId": "d1"}})
	})
	mux.HandleFunc("GET /datasets/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(items)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := apify.NewClient("tok", apify.WithBaseURL(srv.URL), apify.WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	got, err := NewApifyEnricher(c, "contact-actor").Enrich(context.Background(), "https://acme.io")
	require.NoError(t, err)
	assert.Equal(t, []string{"info@acme.io", "sales@acme.io"}, got.Emails)
	assert.Equal(t, []string{"1555010", "44207946"}, got.Phones)
	assert.Equal(t, "https://x.com/acme", got.Socials.Twitter)
	assert.Equal(t, "https://youtube.com/@acme", got.Socials.YouTube)
}

func TestApifyEnricherWrapsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad actor", http.StatusNotFound)
	}))
	defer srv.Close()

	rc := retry.DefaultConfig()
	rc.InitialDelay = time.Millisecond
	c, err := apify.NewClient("tok", apify.WithBaseURL(srv.URL), apify.WithRetry(rc))
	require.NoError(t, err)

	_, err = NewApifyEnricher(c, "missing").Enrich(context.Background(), "https://acme.io")
	assert.ErrorIs(t, err, ErrEnrichment)
}

type stubEnricher struct {
	out   domain.Contacts
	err   error
	calls int
}

func (s *stubEnricher) Enrich(context.Context, string) (domain.Contacts, error) {
	s.calls++
	return s.out, s.err
}

func TestChainFallsBackOnErrorAndEmpty(t *testing.T) {
	found := domain.Contacts{Emails: []string{"a@b.io"}}

	failing := &stubEnricher{err: errors.New("boom")}
	empty := &stubEnricher{}
	good := &stubEnricher{out: found}

	got, err := NewChain(nil, failing, empty, good).Enrich(context.Background(), "https://b.io")
	require.NoError(t, err)
	assert.Equal(t, found, got)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestChainFailsOnlyWhenAllFail(t *testing.T) {
	a := &stubEnricher{err: errors.New("a down")}
	b := &stubEnricher{err: errors.New("b down")}

	_, err := NewChain(nil, a, b).Enrich(context.Background(), "https://b.io")
	require.ErrorIs(t, err, ErrEnrichment)
	assert.Contains(t, err.Error(), "b down")

	got, err := NewChain(nil, a, &stubEnricher{}).Enrich(context.Background(), "https://b.io")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}
