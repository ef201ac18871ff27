package apify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/retry"
	"leadgen-engine/internal/scrape/types"
)

// fakeApify serves one actor whose dataset holds total items.
type fakeApify struct {
	mu          sync.Mutex
	total       int
	startFails  int
	starts      int
	pageFetches int
	lastInput   map[string]any
	finalStatus string
}

func (f *fakeApify) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/{actor}/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		f.mu.Lock()
		f.starts++
		fail := f.starts <= f.startFails
		_ = json.NewDecoder(r.Body).Decode(&f.lastInput)
		f.mu.Unlock()
		if fail {
			http.Error(w, "upstream", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "run1", "status": "RUNNING"}})
	})
	polls := 0
	mux.HandleFunc("GET /actor-runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "RUNNING"
		if polls > 1 {
			status = f.finalStatus
			if status == "" {
				status = "SUCCEEDED"
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": r.PathValue("id"), "status": status, "defaultDatasetId": "ds1",
		}})
	})
	mux.HandleFunc("GET /datasets/{id}/items", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.pageFetches++
		f.mu.Unlock()
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var items []map[string]any
		for i := offset; i < offset+limit && i < f.total; i++ {
			items = append(items, map[string]any{
				"title":           fmt.Sprintf("Job %d", i),
				"company_name":    "Acme",
				"company_website": "https://acme.io",
				"job_url":         fmt.Sprintf("https://www.linkedin.com/jobs/view/%d", i),
			})
		}
		if items == nil {
			items = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(items)
	})
	return mux
}

func newTestSource(t *testing.T, f *fakeApify) *JobSource {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	rc := retry.DefaultConfig()
	rc.InitialDelay = time.Millisecond
	c, err := NewClient("tok",
		WithBaseURL(srv.URL),
		WithPollInterval(time.Millisecond),
		WithPageSize(3),
		WithRetry(rc),
	)
	require.NoError(t, err)
	return NewJobSource(c, "user/linkedin-jobs", nil)
}

func TestSearchStreamingPagesThroughDataset(t *testing.T) {
	f := &fakeApify{total: 7}
	src := newTestSource(t, f)

	var got []domain.Posting
	for p, err := range src.SearchStreaming(context.Background(), types.Query{Job: "go", Country: "Spain", MaxResults: 30}) {
		require.NoError(t, err)
		got = append(got, p)
	}

	require.Len(t, got, 7)
	assert.Equal(t, "Job 0", got[0].Title)
	assert.Equal(t, "Spain", got[0].Country)
	assert.Equal(t, 3, f.pageFetches)

	assert.Equal(t, "DATACENTER", f.lastInput["proxy_group"])
	assert.EqualValues(t, 30, f.lastInput["max_results"])
	assert.Contains(t, f.lastInput["search_url"], "keywords=go")
}

func TestSearchStreamingStopsWhenConsumerBreaks(t *testing.T) {
	f := &fakeApify{total: 100}
	src := newTestSource(t, f)

	n := 0
	for _, err := range src.SearchStreaming(context.Background(), types.Query{Job: "go", Country: "Spain"}) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.pageFetches)
}

func TestSearchStreamingRetriesTransientStart(t *testing.T) {
	f := &fakeApify{total: 1, startFails: 2}
	src := newTestSource(t, f)

	var got int
	for _, err := range src.SearchStreaming(context.Background(), types.Query{Job: "go", Country: "Spain"}) {
		require.NoError(t, err)
		got++
	}
	assert.Equal(t, 1, got)
	assert.Equal(t, 3, f.starts)
}

func TestSearchStreamingYieldsRunFailure(t *testing.T) {
	f := &fakeApify{total: 5, finalStatus: "FAILED"}
	src := newTestSource(t, f)

	var errs []error
	for p, err := range src.SearchStreaming(context.Background(), types.Query{Job: "go", Country: "Spain"}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.Fatalf("unexpected posting %+v", p)
	}
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "FAILED")
	assert.Equal(t, 1, f.starts, "permanent failures are not retried")
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(" ")
	assert.Error(t, err)
}
