// Package campaign runs email and WhatsApp outreach over pending records,
// rotating through the sender pool under the daily rate limits.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/logger"
	"leadgen-engine/internal/metrics"
	"leadgen-engine/internal/outreach"
	"leadgen-engine/internal/ratelimit"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/store"
	"leadgen-engine/internal/task"
)

var (
	ErrNoSenders      = errors.New("no active senders")
	ErrInvalidPayload = errors.New("invalid campaign payload")
)

// Request is the (empty) payload of a campaign task.
type Request struct{}

// CredentialFunc completes a sender's credentials, e.g. from the keychain.
type CredentialFunc func(domain.Sender) (domain.Sender, error)

// Runner is the task.Runner for one outreach channel.
type Runner struct {
	channel  domain.Channel
	records  store.RecordStore
	pool     store.SenderPool
	limiter  *ratelimit.Limiter
	mailer   outreach.Mailer
	whatsapp outreach.WhatsApp

	credentials CredentialFunc
	log         logger.Logger
	metrics     *metrics.Metrics
}

type Option func(*Runner)

func WithCredentials(fn CredentialFunc) Option {
	return func(r *Runner) { r.credentials = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func NewEmail(records store.RecordStore, pool store.SenderPool, limiter *ratelimit.Limiter, mailer outreach.Mailer, log logger.Logger, opts ...Option) *Runner {
	r := newRunner(domain.ChannelEmail, records, pool, limiter, log, opts)
	r.mailer = mailer
	return r
}

func NewWhatsApp(records store.RecordStore, pool store.SenderPool, limiter *ratelimit.Limiter, wa outreach.WhatsApp, log logger.Logger, opts ...Option) *Runner {
	r := newRunner(domain.ChannelWhatsApp, records, pool, limiter, log, opts)
	r.whatsapp = wa
	return r
}

func newRunner(ch domain.Channel, records store.RecordStore, pool store.SenderPool, limiter *ratelimit.Limiter, log logger.Logger, opts []Option) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{
		channel: ch,
		records: records,
		pool:    pool,
		limiter: limiter,
		log:     log.With(logger.String("component", "campaign"), logger.String("channel", string(ch))),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Kind() task.Kind {
	if r.channel == domain.ChannelWhatsApp {
		return task.KindWhatsAppCampaign
	}
	return task.KindEmailCampaign
}

func (r *Runner) Validate(payload any) error {
	switch payload.(type) {
	case nil, Request, *Request:
		return nil
	default:
		return fmt.Errorf("%w: unexpected payload %T", ErrInvalidPayload, payload)
	}
}

func (r *Runner) Run(ctx context.Context, _ any, rep task.Reporter) error {
	pending, err := r.records.PendingRecords(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("load pending records: %w", err)
	}
	senders, err := r.activeSenders(ctx)
	if err != nil {
		return err
	}
	r.log.Info("campaign started", logger.Int("targets", len(pending)), logger.Int("senders", len(senders)))

	// WhatsApp attachment ids by sender, reused for every target in this run.
	uploads := make(map[string]string)

	n := len(pending)
	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Progress(fmt.Sprintf("processing target %d/%d", i+1, n))

		status, err := r.process(ctx, rec, senders, uploads)
		if err != nil {
			return err
		}
		if err := r.records.UpdateStatus(ctx, rec.Row, r.channel, status); err != nil {
			r.log.Error("update status", logger.Int("row", rec.Row), logger.Error(err))
		}

		switch status {
		case domain.StatusSent:
			rep.Count(task.Summary{Sent: 1})
		case domain.StatusFailed:
			rep.Count(task.Summary{Failed: 1})
		default:
			rep.Count(task.Summary{Skipped: 1})
		}
	}

	rep.Progress(fmt.Sprintf("completed %d targets", n))
	return nil
}

func (r *Runner) activeSenders(ctx context.Context) ([]domain.Sender, error) {
	all, err := store.ActiveSenders(ctx, r.pool, r.channel)
	if err != nil {
		return nil, fmt.Errorf("load senders: %w", err)
	}
	out := make([]domain.Sender, 0, len(all))
	for _, s := range all {
		if s.ID == "" {
			continue
		}
		if r.credentials != nil {
			filled, err := r.credentials(s)
			if err != nil {
				r.log.Warn("sender has no credentials", logger.String("sender", s.ID), logger.Error(err))
				continue
			}
			s = filled
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSenders, r.channel)
	}
	return out, nil
}

// process tries senders in order until one delivers. A cancelled context
// or an unreadable usage log is returned as an error.
func (r *Runner) process(ctx context.Context, rec domain.ContactRecord, senders []domain.Sender, uploads map[string]string) (domain.OutreachStatus, error) {
	log := r.log.With(logger.Int("row", rec.Row))
	recipients := Recipients(r.channel, rec)
	if len(recipients) == 0 {
		log.Warn("no valid recipient")
		return domain.StatusSkipped, nil
	}

	for _, s := range senders {
		res, err := r.limiter.Reserve(ctx, s.ID, r.channel)
		if errors.Is(err, ratelimit.ErrLimitReached) {
			r.metrics.SenderDenied(string(r.channel))
			log.Info("sender at daily limit", logger.String("sender", s.ID))
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// The usage log is unreadable; the record stays Pending.
			return "", fmt.Errorf("reserve sender %s: %w", s.ID, err)
		}

		if err := r.send(ctx, s, recipients, uploads); err != nil {
			res.Release()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.metrics.Send(string(r.channel), "failed")
			log.Warn("send failed", logger.String("sender", s.ID), logger.Error(err))
			continue
		}

		if err := res.Commit(ctx, strings.Join(recipients, ",")); err != nil {
			log.Error("log send", logger.String("sender", s.ID), logger.Error(err))
		}
		r.metrics.Send(string(r.channel), "sent")
		return domain.StatusSent, nil
	}

	log.Warn("no sender delivered", logger.Strings("recipients", recipients))
	return domain.StatusFailed, nil
}

func (r *Runner) send(ctx context.Context, s domain.Sender, recipients []string, uploads map[string]string) error {
	if r.channel == domain.ChannelEmail {
		return r.mailer.SendEmail(ctx, recipients[0], s, s.AttachmentFile, s.Subject)
	}

	id, ok := uploads[s.ID]
	if !ok {
		var err error
		id, err = r.whatsapp.Upload(ctx, s, s.AttachmentFile)
		if err != nil {
			return fmt.Errorf("upload attachment: %w", err)
		}
		uploads[s.ID] = id
	}
	return r.whatsapp.Send(ctx, recipients, id, s)
}

// Recipients returns the addresses a record is contacted on: its first
// valid email, or every phone number as +<digits>.
func Recipients(ch domain.Channel, rec domain.ContactRecord) []string {
	if ch == domain.ChannelEmail {
		for _, e := range rec.Emails {
			if e = strings.TrimSpace(e); e != "" && strings.Contains(e, "@") {
				return []string{e}
			}
		}
		return nil
	}

	var out []string
	for _, p := range util.CleanPhones(rec.Phones) {
		out = append(out, "+"+p)
	}
	return out
}
