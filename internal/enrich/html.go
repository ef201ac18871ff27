package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+[0-9][0-9 ().\-]{6,}[0-9]`)
)

// contactPaths are fetched after the homepage when it links to them.
var contactPaths = []string{"contact", "kontakt", "contacto", "about", "impressum"}

// HTMLEnricher scrapes the homepage and at most one contact page directly.
type HTMLEnricher struct {
	hc       *http.Client
	maxPages int
	pacer    *util.HostLimiter
}

func NewHTMLEnricher(hc *http.Client) *HTMLEnricher {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLEnricher{hc: hc, maxPages: 2}
}

// WithHostLimiter paces page fetches per host.
func (h *HTMLEnricher) WithHostLimiter(l *util.HostLimiter) *HTMLEnricher {
	h.pacer = l
	return h
}

func (h *HTMLEnricher) Enrich(ctx context.Context, website string) (domain.Contacts, error) {
	base, err := url.Parse(website)
	if err != nil || base.Host == "" {
		return domain.Contacts{}, fmt.Errorf("%w: bad website %q", ErrEnrichment, website)
	}

	doc, err := h.fetch(ctx, base.String())
	if err != nil {
		return domain.Contacts{}, fmt.Errorf("%w: %w", ErrEnrichment, err)
	}

	var agg raw
	agg.merge(extract(doc))

	pages := 1
	for _, next := range contactLinks(doc, base) {
		if pages >= h.maxPages {
			break
		}
		sub, err := h.fetch(ctx, next)
		if err != nil {
			continue
		}
		pages++
		agg.merge(extract(sub))
	}
	return agg.contacts(), nil
}

func (h *HTMLEnricher) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	if h.pacer != nil {
		if err := h.pacer.WaitURL(ctx, u); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; leadgen/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := h.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("get %s: status %d", u, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	return doc, nil
}

func extract(doc *goquery.Document) raw {
	var r raw

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		low := strings.ToLower(href)

		switch {
		case strings.HasPrefix(low, "mailto:"):
			addr := strings.SplitN(href[len("mailto:"):], "?", 2)[0]
			if addr, err := url.PathUnescape(addr); err == nil {
				r.Emails = append(r.Emails, addr)
			}
		case strings.HasPrefix(low, "tel:"):
			r.Phones = append(r.Phones, href[len("tel:"):])
		case strings.Contains(low, "linkedin.com/"):
			r.LinkedIns = append(r.LinkedIns, href)
		case strings.Contains(low, "twitter.com/") || strings.Contains(low, "//x.com/"):
			r.Twitters = append(r.Twitters, href)
		case strings.Contains(low, "instagram.com/"):
			r.Instagrams = append(r.Instagrams, href)
		case strings.Contains(low, "facebook.com/"):
			r.Facebooks = append(r.Facebooks, href)
		case strings.Contains(low, "youtube.com/"):
			r.YouTubes = append(r.YouTubes, href)
		case strings.Contains(low, "tiktok.com/"):
			r.TikToks = append(r.TikToks, href)
		case strings.Contains(low, "pinterest.com/"):
			r.Pinterests = append(r.Pinterests, href)
		case strings.Contains(low, "discord.gg/") || strings.Contains(low, "discord.com/"):
			r.Discords = append(r.Discords, href)
		}
	})

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	r.Emails = append(r.Emails, emailRe.FindAllString(text, -1)...)
	r.Phones = append(r.Phones, phoneRe.FindAllString(text, -1)...)
	return r
}

func contactLinks(doc *goquery.Document, base *url.URL) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return
		}
		low := strings.ToLower(abs.Path)
		for _, p := range contactPaths {
			if strings.Contains(low, p) {
				abs.Fragment = ""
				s := abs.String()
				if !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
				return
			}
		}
	})
	return out
}
