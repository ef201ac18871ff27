package util

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEmails(t *testing.T) {
	got := CleanEmails([]string{" A@X.com", "a@x.com", "", "b@y.com "})
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, got)
}

func TestCleanPhones(t *testing.T) {
	got := CleanPhones([]string{"+1 (555) 010-2000", "15550102000", "n/a", "44 20 7946 0000"})
	assert.Equal(t, []string{"15550102000", "442079460000"}, got)
}

func TestFirstLink(t *testing.T) {
	assert.Equal(t, "https://x.com/acme", FirstLink([]string{"", "  ", "https://x.com/acme", "https://x.com/other"}))
	assert.Empty(t, FirstLink(nil))
}

func TestSplitJoinList(t *testing.T) {
	items := []string{"a@x.com", "b@y.com"}
	assert.Equal(t, items, SplitList(JoinList(items)))
	assert.Nil(t, SplitList(" , "))
}

func TestLinkedInSearchURL(t *testing.T) {
	raw := LinkedInSearchURL("go developer", "Germany")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "/jobs/search/", u.Path)
	q := u.Query()
	assert.Equal(t, "go developer", q.Get("keywords"))
	assert.Equal(t, "Germany", q.Get("location"))
	assert.Equal(t, "2", q.Get("f_WT"))
	assert.Equal(t, "r86400", q.Get("f_TPR"))
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t,
		"https://www.linkedin.com/jobs/view/123?currentJobId=123",
		CanonicalURL("HTTPS://WWW.LinkedIn.com/jobs/view/123?currentJobId=123&trk=abc&refId=z#top"),
	)
	assert.Equal(t, "https://acme.io/careers?id=7", CanonicalURL("https://acme.io/careers?utm_source=x&id=7"))
	assert.Empty(t, CanonicalURL("  "))
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://acme.io", NormalizeWebsite("acme.io"))
	assert.Equal(t, "http://acme.io/about", NormalizeWebsite(" http://acme.io/about "))
	assert.Empty(t, NormalizeWebsite("n/a"))
	assert.Empty(t, NormalizeWebsite(""))
}

func TestHostLimiterPacesPerHost(t *testing.T) {
	hl := EveryInterval(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, hl.WaitURL(ctx, "https://a.example/x"))
	require.NoError(t, hl.WaitURL(ctx, "https://b.example/x"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "distinct hosts do not wait on each other")

	require.NoError(t, hl.WaitURL(ctx, "https://a.example/y"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHostLimiterHonoursContext(t *testing.T) {
	hl := EveryInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hl.Wait(ctx, "k"))
	cancel()
	assert.Error(t, hl.Wait(ctx, "k"))
}
