package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"leadgen-engine/internal/campaign"
	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/enrich"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/metrics"
	"leadgen-engine/internal/outreach"
	"leadgen-engine/internal/ratelimit"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/scrape/apify"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/secrets"
	"leadgen-engine/internal/store"
	"leadgen-engine/internal/store/sheets"
	"leadgen-engine/internal/task"
)

// htmlFetchInterval spaces page fetches to one company site.
const htmlFetchInterval = time.Second

// engine is every long-lived component, wired from one config.
type engine struct {
	cfg     config.Config
	log     logger.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	hub     *events.Hub
	tasks   *task.Orchestrator

	// db is set with the sqlite backend only.
	db *store.DB

	closers []func() error
}

func newEngine(ctx context.Context, cfg config.Config, log logger.Logger) (_ *engine, err error) {
	e := &engine{
		cfg: cfg,
		log: log,
		reg: prometheus.NewRegistry(),
		hub: events.NewHub(),
	}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	e.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.metrics = metrics.New(e.reg)

	records, pool, usage, err := e.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		e.closers = append(e.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		usage = ratelimit.NewRedisLog(rdb, cfg.Redis.Prefix)
		log.Info("send log kept in redis", logger.String("addr", cfg.Redis.Addr))
	}

	limiter := ratelimit.New(usage, ratelimit.Limits{
		domain.ChannelEmail:    cfg.Limits.Email,
		domain.ChannelWhatsApp: cfg.Limits.WhatsApp,
	})

	e.tasks = task.New(ctx, task.Config{MaxConcurrent: cfg.App.MaxConcurrentTasks}, log)
	e.tasks.Observe(e.hub)
	e.tasks.Observe(e.metrics)

	if err := e.registerScraping(records); err != nil {
		return nil, err
	}
	e.registerCampaigns(records, pool, limiter)
	return e, nil
}

func (e *engine) openBackend(ctx context.Context) (store.RecordStore, store.SenderPool, ratelimit.UsageLog, error) {
	cfg := e.cfg
	switch cfg.App.Backend {
	case config.BackendSQLite:
		db, err := store.Open(filepath.Join(cfg.App.DataDir, "leadgen.db"))
		if err != nil {
			return nil, nil, nil, err
		}
		e.db = db
		e.closers = append(e.closers, db.Close)

		var pool store.StaticPool
		if cfg.SendersFile != "" {
			senders, err := config.LoadSenders(cfg.SendersFile)
			switch {
			case errors.Is(err, os.ErrNotExist):
				e.log.Warn("senders file not found", logger.String("path", cfg.SendersFile))
			case err != nil:
				return nil, nil, nil, err
			default:
				pool = senders
			}
		}
		e.log.Info("using sqlite backend",
			logger.String("data_dir", cfg.App.DataDir),
			logger.Int("senders", len(pool)))
		return db, pool, db, nil

	case config.BackendSheets:
		v, err := sheets.NewValues(ctx, cfg.Sheets.CredentialsPath, cfg.Sheets.SpreadsheetID)
		if err != nil {
			return nil, nil, nil, err
		}
		e.log.Info("using google sheets backend", logger.String("spreadsheet", cfg.Sheets.SpreadsheetID))
		return sheets.NewRecords(v, cfg.Sheets.RecordsSheet),
			sheets.NewSenderPool(v, cfg.Sheets.SendersSheet),
			sheets.NewSendLog(v, cfg.Sheets.SendLogSheet, cfg.Sheets.SendLogCache),
			nil
	}
	return nil, nil, nil, fmt.Errorf("unknown backend %q", cfg.App.Backend)
}

// registerScraping leaves the kind unregistered when Apify is not
// configured, so submissions answer "not configured" instead of failing later.
func (e *engine) registerScraping(records store.RecordStore) error {
	cfg := e.cfg
	if cfg.Apify.Token == "" || cfg.Apify.LinkedInActorID == "" {
		e.log.Warn("scraping disabled: apify token or linkedin actor missing")
		return nil
	}

	client, err := apify.NewClient(cfg.Apify.Token,
		apify.WithBaseURL(cfg.Apify.BaseURL),
		apify.WithPollInterval(cfg.Apify.PollInterval),
		apify.WithLogger(e.log),
	)
	if err != nil {
		return err
	}
	runOpts := apify.RunOptions{MemoryMB: cfg.Apify.MemoryMB, TimeoutSec: cfg.Apify.TimeoutSec}
	source := apify.NewJobSource(client, cfg.Apify.LinkedInActorID, e.log).WithRunOptions(runOpts)

	var enrichers []types.Enricher
	if cfg.Apify.ContactActorID != "" {
		enrichers = append(enrichers, enrich.NewApifyEnricher(client, cfg.Apify.ContactActorID).WithRunOptions(runOpts))
	}
	if cfg.Scrape.HTMLFallback {
		enrichers = append(enrichers, enrich.NewHTMLEnricher(nil).WithHostLimiter(util.EveryInterval(htmlFetchInterval)))
	}
	if len(enrichers) == 0 {
		return errors.New("no enricher configured")
	}

	e.tasks.Register(scrape.NewPipeline(source, enrich.NewChain(e.log, enrichers...), records, e.log,
		scrape.WithEnrichInterval(cfg.Scrape.EnrichInterval),
		scrape.WithCombinationPause(cfg.Scrape.CombinationPause),
		scrape.WithMetrics(e.metrics),
	))
	return nil
}

func (e *engine) registerCampaigns(records store.RecordStore, pool store.SenderPool, limiter *ratelimit.Limiter) {
	cfg := e.cfg

	var archiver outreach.Archiver
	if cfg.Mail.IMAPAddr != "" {
		archiver = outreach.NewIMAPArchiver(cfg.Mail.IMAPAddr, cfg.Mail.SentMailbox)
	}
	mailer := outreach.NewSMTPMailer(outreach.SMTPConfig{
		FromName:      cfg.Mail.FromName,
		UseTLS:        cfg.Mail.UseTLS,
		UseSSL:        cfg.Mail.UseSSL,
		AttachmentDir: cfg.Mail.AttachmentDir,
		TextBody:      cfg.Mail.TextBody,
		HTMLBody:      cfg.Mail.HTMLBody,
	}, archiver, e.log)
	e.tasks.Register(campaign.NewEmail(records, pool, limiter, mailer, e.log,
		campaign.WithCredentials(secrets.Fill),
		campaign.WithMetrics(e.metrics),
	))

	wa := outreach.NewInboxino(outreach.InboxinoConfig{
		SendURL:       cfg.WhatsApp.APIURL,
		UploadURL:     cfg.WhatsApp.UploadURL,
		Message:       cfg.WhatsApp.Message,
		AttachmentDir: cfg.Mail.AttachmentDir,
	}, nil, e.log)
	e.tasks.Register(campaign.NewWhatsApp(records, pool, limiter, wa, e.log,
		campaign.WithCredentials(secrets.Fill),
		campaign.WithMetrics(e.metrics),
	))
}

// Close releases backends in reverse order of opening.
func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
