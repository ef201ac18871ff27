// Package ratelimit enforces per-sender daily send limits over a trailing
// 24h window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadgen-engine/internal/domain"
)

// Window is the trailing period usage is counted over.
const Window = 24 * time.Hour

var ErrLimitReached = errors.New("sender daily limit reached")

// UsageLog persists confirmed sends.
type UsageLog interface {
	CountSends(ctx context.Context, senderID string, ch domain.Channel, since time.Time) (int, error)
	LogSend(ctx context.Context, e domain.SendLogEntry) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Limits is the per-channel cap on sends per sender within Window.
type Limits map[domain.Channel]int

func DefaultLimits() Limits {
	return Limits{
		domain.ChannelEmail:    30,
		domain.ChannelWhatsApp: 200,
	}
}

type Limiter struct {
	log    UsageLog
	clock  Clock
	limits Limits

	mu      sync.Mutex
	senders map[string]*senderState
}

type senderState struct {
	mu      sync.Mutex
	pending int
}

type Option func(*Limiter)

func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

func New(log UsageLog, limits Limits, opts ...Option) *Limiter {
	merged := DefaultLimits()
	for ch, n := range limits {
		if n > 0 {
			merged[ch] = n
		}
	}
	l := &Limiter{
		log:     log,
		clock:   systemClock{},
		limits:  merged,
		senders: make(map[string]*senderState),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Limit(ch domain.Channel) int { return l.limits[ch] }

func (l *Limiter) state(senderID string, ch domain.Channel) *senderState {
	key := string(ch) + ":" + senderID

	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.senders[key]
	if !ok {
		st = &senderState{}
		l.senders[key] = st
	}
	return st
}

func (l *Limiter) used(ctx context.Context, senderID string, ch domain.Channel) (int, error) {
	n, err := l.log.CountSends(ctx, senderID, ch, l.clock.Now().Add(-Window))
	if err != nil {
		return 0, fmt.Errorf("count usage for %s: %w", senderID, err)
	}
	return n, nil
}

// IsEligible reports whether senderID has room for one more send,
// counting reservations still in flight.
func (l *Limiter) IsEligible(ctx context.Context, senderID string, ch domain.Channel) (bool, error) {
	st := l.state(senderID, ch)
	st.mu.Lock()
	defer st.mu.Unlock()

	n, err := l.used(ctx, senderID, ch)
	if err != nil {
		return false, err
	}
	return n+st.pending < l.limits[ch], nil
}

// RecordSend logs a confirmed send at the current time.
func (l *Limiter) RecordSend(ctx context.Context, senderID string, ch domain.Channel, recipient string) error {
	return l.log.LogSend(ctx, domain.SendLogEntry{
		SenderID:  senderID,
		Channel:   ch,
		Recipient: recipient,
		At:        l.clock.Now(),
	})
}

// Reserve holds one slot for senderID or fails with ErrLimitReached. The
// check and the hold happen under the sender's lock, so concurrent
// campaigns cannot jointly overshoot the limit.
func (l *Limiter) Reserve(ctx context.Context, senderID string, ch domain.Channel) (*Reservation, error) {
	st := l.state(senderID, ch)
	st.mu.Lock()
	defer st.mu.Unlock()

	n, err := l.used(ctx, senderID, ch)
	if err != nil {
		return nil, err
	}
	if n+st.pending >= l.limits[ch] {
		return nil, fmt.Errorf("%w: %s used %d/%d", ErrLimitReached, senderID, n+st.pending, l.limits[ch])
	}
	st.pending++
	return &Reservation{l: l, st: st, senderID: senderID, ch: ch}, nil
}

// Reservation is a held slot. Exactly one of Commit or Release takes
// effect; later calls are no-ops.
type Reservation struct {
	l        *Limiter
	st       *senderState
	senderID string
	ch       domain.Channel
	once     sync.Once
}

// Commit logs the send and frees the hold; the slot stays consumed through
// the log entry. The write is retried once. If it still fails the hold is
// kept, so the unlogged send counts toward the limit for the life of the
// process.
func (r *Reservation) Commit(ctx context.Context, recipient string) error {
	var err error
	r.once.Do(func() {
		r.st.mu.Lock()
		defer r.st.mu.Unlock()
		if err = r.l.RecordSend(ctx, r.senderID, r.ch, recipient); err != nil && ctx.Err() == nil {
			err = r.l.RecordSend(ctx, r.senderID, r.ch, recipient)
		}
		if err != nil {
			err = fmt.Errorf("log send for %s: %w", r.senderID, err)
			return
		}
		r.st.pending--
	})
	return err
}

func (r *Reservation) Release() {
	r.once.Do(func() {
		r.st.mu.Lock()
		r.st.pending--
		r.st.mu.Unlock()
	})
}
