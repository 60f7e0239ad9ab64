package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwahn/pricepulse/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
}

func (j *stubJob) Name() string              { return j.name }
func (j *stubJob) Schedule() string          { return j.schedule }
func (j *stubJob) Run(context.Context) error { return nil }

func TestAddJobRejectsDuplicates(t *testing.T) {
	sched := New(logger.NewNop())

	job := &stubJob{name: "reconcile", schedule: "0 15 8 * * 1-5"}
	require.NoError(t, sched.AddJob(job))

	err := sched.AddJob(job)
	assert.Error(t, err)
	assert.Equal(t, []string{"reconcile"}, sched.GetAllJobs())
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	sched := New(logger.NewNop())

	err := sched.AddJob(&stubJob{name: "broken", schedule: "not a cron spec"})
	assert.Error(t, err)
	assert.Empty(t, sched.GetAllJobs())
}

func TestJobHistoryKeepsLast100(t *testing.T) {
	history := &JobHistory{}

	for i := 0; i < 150; i++ {
		history.AddResult(JobResult{
			JobName: "reconcile",
			Success: i%3 != 0,
			Error:   fmt.Sprintf("run %d", i),
		})
	}

	assert.Len(t, history.Results, 100)
	// The oldest 50 were dropped.
	assert.Equal(t, "run 50", history.Results[0].Error)
	assert.Equal(t, "run 149", history.Results[99].Error)
}

func TestJobHistoryLatestAndFailures(t *testing.T) {
	history := &JobHistory{}
	history.AddResult(JobResult{JobName: "reconcile", Success: true})
	history.AddResult(JobResult{JobName: "reconcile", Success: false, Error: "provider down"})
	history.AddResult(JobResult{JobName: "reconcile", Success: true})

	latest := history.GetLatestResults(2)
	require.Len(t, latest, 2)
	assert.False(t, latest[0].Success)
	assert.True(t, latest[1].Success)

	failed := history.GetFailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "provider down", failed[0].Error)

	assert.InDelta(t, 2.0/3.0, history.GetSuccessRate(), 1e-9)
}

func TestGetJobHistoryUnknownJob(t *testing.T) {
	sched := New(logger.NewNop())

	_, err := sched.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestRunJobRecordsHistory(t *testing.T) {
	sched := New(logger.NewNop())
	sched.retryDelay = time.Millisecond

	require.NoError(t, sched.AddJob(&stubJob{name: "close_refresh", schedule: "0 10 16 * * 1-5"}))
	require.Error(t, sched.RunJob("missing"))
	require.NoError(t, sched.RunJob("close_refresh"))

	assert.Eventually(t, func() bool {
		history, err := sched.GetJobHistory("close_refresh")
		if err != nil {
			return false
		}
		sched.mu.RLock()
		defer sched.mu.RUnlock()
		return len(history.Results) == 1 && history.Results[0].Success
	}, time.Second, 10*time.Millisecond)
}
