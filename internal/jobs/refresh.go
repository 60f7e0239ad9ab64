package jobs

import (
	"context"

	"github.com/hwahn/pricepulse/internal/refresh"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// CloseRefreshJob posts regular closes shortly after the close and seeds
// the next trading day's baselines.
type CloseRefreshJob struct {
	job    *refresh.Job
	logger *logger.Logger
}

// NewCloseRefreshJob creates the scheduled close-refresh job.
func NewCloseRefreshJob(job *refresh.Job, log *logger.Logger) *CloseRefreshJob {
	return &CloseRefreshJob{job: job, logger: log}
}

// Name returns the job name.
func (j *CloseRefreshJob) Name() string {
	return "close_refresh"
}

// Schedule runs at 16:10 ET on weekdays, after the regular close posts.
func (j *CloseRefreshJob) Schedule() string {
	return "0 10 16 * * 1-5"
}

// Run executes the refresh.
func (j *CloseRefreshJob) Run(ctx context.Context) error {
	report, err := j.job.Run(ctx, refresh.Params{})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"regular_refreshed":  report.RegularCloseRefreshed,
		"previous_refreshed": report.PreviousCloseRefreshed,
		"errors":             report.Errors,
	}).Info("Scheduled close refresh finished")

	return nil
}
