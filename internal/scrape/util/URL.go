package util

import (
	"net/url"
	"sort"
	"strings"
)

const linkedInJobsSearch = "https://www.linkedin.com/jobs/search/"

// LinkedInSearchURL builds a remote-only, last-24h LinkedIn job search.
func LinkedInSearchURL(keyword, location string) string {
	q := url.Values{}
	q.Set("keywords", keyword)
	q.Set("location", location)
	return linkedInJobsSearch + "?" + q.Encode() + "&f_WT=2&f_TPR=r86400"
}

// CanonicalURL drops tracking params and fragments so the same posting
// compares equal across runs.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "refid" || lk == "trackingid" || lk == "trk" {
			q.Del(k)
		}
	}

	if strings.Contains(u.Host, "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}

	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NormalizeWebsite adds a scheme to bare hosts. Returns "" for values that
// cannot be a website.
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return ""
	}
	return u.String()
}
