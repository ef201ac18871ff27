// Package apify runs Apify actors over the REST API and streams their
// dataset items.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/retry"
)

const (
	DefaultBaseURL = "https://api.apify.com/v2"
	defaultPage    = 50
)

// Run is the subset of an actor run object we read.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (r Run) finished() bool {
	switch r.Status {
	case "SUCCEEDED", "FAILED", "ABORTED", "TIMED-OUT":
		return true
	}
	return false
}

// RunOptions are passed as query parameters when starting a run.
type RunOptions struct {
	MemoryMB   int
	TimeoutSec int
}

func (o RunOptions) merge(def RunOptions) RunOptions {
	if o.MemoryMB <= 0 {
		o.MemoryMB = def.MemoryMB
	}
	if o.TimeoutSec <= 0 {
		o.TimeoutSec = def.TimeoutSec
	}
	return o
}

type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	pollInterval time.Duration
	pageSize     int
	retry        retry.Config
	log          logger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option             { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }
func WithHTTPClient(h *http.Client) Option    { return func(c *Client) { c.http = h } }
func WithPollInterval(d time.Duration) Option { return func(c *Client) { c.pollInterval = d } }
func WithPageSize(n int) Option               { return func(c *Client) { c.pageSize = n } }
func WithRetry(cfg retry.Config) Option       { return func(c *Client) { c.retry = cfg } }
func WithLogger(l logger.Logger) Option       { return func(c *Client) { c.log = l } }

func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("apify token is empty")
	}
	c := &Client{
		baseURL:      DefaultBaseURL,
		token:        token,
		http:         &http.Client{Timeout: 2 * time.Minute},
		pollInterval: 3 * time.Second,
		pageSize:     defaultPage,
		retry:        retry.DefaultConfig(),
		log:          logger.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPage
	}
	return c, nil
}

// actor ids like "user/actor" must be sent as "user~actor"
func actorPath(id string) string {
	return url.PathEscape(strings.ReplaceAll(id, "/", "~"))
}

func (c *Client) do(req *http.Request, want int, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("apify %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartRun starts an actor run and returns immediately.
func (c *Client) StartRun(ctx context.Context, actorID string, input any, opts RunOptions) (Run, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return Run{}, fmt.Errorf("encode input: %w", err)
	}

	q := url.Values{}
	if opts.MemoryMB > 0 {
		q.Set("memory", strconv.Itoa(opts.MemoryMB))
	}
	if opts.TimeoutSec > 0 {
		q.Set("timeout", strconv.Itoa(opts.TimeoutSec))
	}
	u := fmt.Sprintf("%s/acts/%s/runs", c.baseURL, actorPath(actorID))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Run{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res struct {
		Data Run `json:"data"`
	}
	if err := c.do(req, http.StatusCreated, &res); err != nil {
		return Run{}, fmt.Errorf("start actor %s: %w", actorID, err)
	}
	return res.Data, nil
}

// WaitRun polls until the run reaches a terminal status.
func (c *Client) WaitRun(ctx context.Context, runID string) (Run, error) {
	u := fmt.Sprintf("%s/actor-runs/%s", c.baseURL, url.PathEscape(runID))
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return Run{}, err
		}
		var res struct {
			Data Run `json:"data"`
		}
		if err := c.do(req, http.StatusOK, &res); err != nil {
			return Run{}, fmt.Errorf("poll run %s: %w", runID, err)
		}
		if res.Data.finished() {
			if res.Data.Status != "SUCCEEDED" {
				return res.Data, fmt.Errorf("actor run %s finished with status %s", runID, res.Data.Status)
			}
			return res.Data, nil
		}

		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Run{}, ctx.Err()
		case <-t.C:
		}
	}
}

// DatasetPage fetches one page of dataset items.
func (c *Client) DatasetPage(ctx context.Context, datasetID string, offset, limit int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("clean", "true")
	q.Set("format", "json")
	u := fmt.Sprintf("%s/datasets/%s/items?%s", c.baseURL, url.PathEscape(datasetID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := c.do(req, http.StatusOK, &items); err != nil {
		return nil, fmt.Errorf("dataset %s offset %d: %w", datasetID, offset, err)
	}
	return items, nil
}

// RunToCompletion starts a run and waits for it, retrying transient
// failures of either step.
func (c *Client) RunToCompletion(ctx context.Context, actorID string, input any, opts RunOptions) (Run, error) {
	var run Run
	cfg := c.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Warn("apify run failed, retrying",
			logger.String("actor", actorID),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}
	err := retry.Do(ctx, cfg, func() error {
		started, err := c.StartRun(ctx, actorID, input, opts)
		if err != nil {
			return err
		}
		c.log.Info("apify run started", logger.String("actor", actorID), logger.String("run_id", started.ID))
		run, err = c.WaitRun(ctx, started.ID)
		return err
	})
	return run, err
}

// Items runs an actor and yields its dataset items one page at a time.
// Only the current page is held in memory; breaking out of the loop stops
// further page requests.
func (c *Client) Items(ctx context.Context, actorID string, input any, opts RunOptions) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		run, err := c.RunToCompletion(ctx, actorID, input, opts)
		if err != nil {
			yield(nil, err)
			return
		}

		offset := 0
		for {
			page, err := c.DatasetPage(ctx, run.DefaultDatasetID, offset, c.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, raw := range page {
				if !yield(raw, nil) {
					return
				}
			}
			if len(page) < c.pageSize {
				return
			}
			offset += len(page)
		}
	}
}
