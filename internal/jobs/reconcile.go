package jobs

import (
	"context"

	"github.com/hwahn/pricepulse/internal/reconcile"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// ReconcileJob runs a drift-detection pass three times a trading day:
// pre-market, midday, and evening.
type ReconcileJob struct {
	engine *reconcile.Engine
	logger *logger.Logger
}

// NewReconcileJob creates the scheduled reconciliation job.
func NewReconcileJob(engine *reconcile.Engine, log *logger.Logger) *ReconcileJob {
	return &ReconcileJob{engine: engine, logger: log}
}

// Name returns the job name.
func (j *ReconcileJob) Name() string {
	return "reconcile"
}

// Schedule runs at 08:15, 12:15 and 18:15 ET on weekdays.
func (j *ReconcileJob) Schedule() string {
	return "0 15 8,12,18 * * 1-5"
}

// Run executes a full reconciliation pass.
func (j *ReconcileJob) Run(ctx context.Context) error {
	report, err := j.engine.Run(ctx, reconcile.Params{})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"checked":   report.Checked,
		"needs_fix": report.NeedsFix,
		"fixed":     report.Fixed,
		"errors":    report.Errors,
	}).Info("Scheduled reconciliation finished")

	return nil
}
