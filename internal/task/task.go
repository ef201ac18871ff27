// Package task runs background jobs and keeps their status for polling.
package task

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindScraping         Kind = "Scraping"
	KindEmailCampaign    Kind = "Email Campaign"
	KindWhatsAppCampaign Kind = "WhatsApp Campaign"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task state transition")
	ErrUnknownKind       = errors.New("unknown task kind")
)

var transitions = map[Status][]Status{
	StatusQueued: {
		StatusRunning,
		StatusFailed, // shutdown before a worker slot freed up
	},
	StatusRunning: {
		StatusCompleted,
		StatusFailed,
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

func validateTransition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Summary counts per-unit outcomes of a run.
type Summary struct {
	Appended int `json:"appended"`
	Skipped  int `json:"skipped"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

func (s *Summary) add(d Summary) {
	s.Appended += d.Appended
	s.Skipped += d.Skipped
	s.Sent += d.Sent
	s.Failed += d.Failed
}

// Task is a snapshot of one background job. StartedAt is the submission
// time; FinishedAt is set once the task is terminal.
type Task struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"type"`
	Status     Status     `json:"status"`
	Progress   string     `json:"progress"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Error      string     `json:"error,omitempty"`
	Summary    Summary    `json:"summary"`
}

func (t *Task) clone() Task {
	c := *t
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	return c
}
