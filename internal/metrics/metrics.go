// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leadgen-engine/internal/task"
)

const namespace = "leadgen"

// Metrics holds every collector the engine updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TasksSubmitted *prometheus.CounterVec
	TasksFinished  *prometheus.CounterVec
	TasksRunning   *prometheus.GaugeVec
	TaskDuration   *prometheus.HistogramVec

	RecordsAppended  prometheus.Counter
	PostingsSkipped  *prometheus.CounterVec
	CombinationFails prometheus.Counter

	SendsTotal    *prometheus.CounterVec
	SenderDenials *prometheus.CounterVec

	mu   sync.Mutex
	last map[string]task.Status
}

// New registers all collectors with reg, or the default registerer when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{last: make(map[string]task.Status)}

	m.initTaskMetrics(factory)
	m.initScrapeMetrics(factory)
	m.initOutreachMetrics(factory)
	return m
}

func (m *Metrics) initTaskMetrics(factory promauto.Factory) {
	m.TasksSubmitted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "submitted_total",
			Help:      "Tasks accepted for execution",
		},
		[]string{"kind"},
	)
	m.TasksFinished = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Tasks that reached a terminal status",
		},
		[]string{"kind", "status"},
	)
	m.TasksRunning = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "running",
			Help:      "Tasks currently running",
		},
		[]string{"kind"},
	)
	m.TaskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Time from submission to terminal status",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		},
		[]string{"kind"},
	)
}

func (m *Metrics) initScrapeMetrics(factory promauto.Factory) {
	m.RecordsAppended = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "records_appended_total",
		Help:      "Contact records written to the record store",
	})
	m.PostingsSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "postings_skipped_total",
			Help:      "Postings not turned into a record, by reason",
		},
		[]string{"reason"},
	)
	m.CombinationFails = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "combination_failures_total",
		Help:      "Job searches that ended with an error",
	})
}

func (m *Metrics) initOutreachMetrics(factory promauto.Factory) {
	m.SendsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outreach",
			Name:      "sends_total",
			Help:      "Outreach attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	m.SenderDenials = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outreach",
			Name:      "sender_denials_total",
			Help:      "Reservations refused because a sender hit its daily limit",
		},
		[]string{"channel"},
	)
}

func (m *Metrics) RecordAppended() {
	if m == nil {
		return
	}
	m.RecordsAppended.Inc()
}

func (m *Metrics) PostingSkipped(reason string) {
	if m == nil {
		return
	}
	m.PostingsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) CombinationFailed() {
	if m == nil {
		return
	}
	m.CombinationFails.Inc()
}

func (m *Metrics) Send(channel, outcome string) {
	if m == nil {
		return
	}
	m.SendsTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) SenderDenied(channel string) {
	if m == nil {
		return
	}
	m.SenderDenials.WithLabelValues(channel).Inc()
}

// TaskUpdated implements task.Observer. Only status changes are counted;
// progress-only updates are ignored.
func (m *Metrics) TaskUpdated(t task.Task) {
	if m == nil {
		return
	}
	kind := string(t.Kind)

	m.mu.Lock()
	prev, seen := m.last[t.ID]
	if seen && prev == t.Status {
		m.mu.Unlock()
		return
	}
	if t.Status.Terminal() {
		delete(m.last, t.ID)
	} else {
		m.last[t.ID] = t.Status
	}
	m.mu.Unlock()

	switch t.Status {
	case task.StatusQueued:
		m.TasksSubmitted.WithLabelValues(kind).Inc()
	case task.StatusRunning:
		m.TasksRunning.WithLabelValues(kind).Inc()
	case task.StatusCompleted, task.StatusFailed:
		if prev == task.StatusRunning {
			m.TasksRunning.WithLabelValues(kind).Dec()
		}
		m.TasksFinished.WithLabelValues(kind, string(t.Status)).Inc()
		if t.FinishedAt != nil {
			m.TaskDuration.WithLabelValues(kind).Observe(t.FinishedAt.Sub(t.StartedAt).Seconds())
		}
	}
}
