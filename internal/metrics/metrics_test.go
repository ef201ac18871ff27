package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"leadgen-engine/internal/task"
)

func TestTaskUpdatedCountsTransitionsOnce(t *testing.T) {
	m := New(prometheus.NewRegistry())
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tk := task.Task{ID: "t1", Kind: task.KindScraping, Status: task.StatusQueued, StartedAt: start}

	m.TaskUpdated(tk)
	tk.Status = task.StatusRunning
	m.TaskUpdated(tk)
	tk.Progress = "processing 1/2"
	m.TaskUpdated(tk)

	kind := string(task.KindScraping)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksSubmitted.WithLabelValues(kind)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksRunning.WithLabelValues(kind)), 0)

	done := start.Add(90 * time.Second)
	tk.Status = task.StatusCompleted
	tk.FinishedAt = &done
	m.TaskUpdated(tk)

	assert.InDelta(t, 0, testutil.ToFloat64(m.TasksRunning.WithLabelValues(kind)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksFinished.WithLabelValues(kind, "completed")), 0)
	assert.Empty(t, m.last)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAppended()
		m.PostingSkipped("duplicate")
		m.CombinationFailed()
		m.Send("email", "sent")
		m.SenderDenied("email")
		m.TaskUpdated(task.Task{ID: "x"})
	})
}
