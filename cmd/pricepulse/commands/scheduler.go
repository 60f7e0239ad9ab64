package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hwahn/pricepulse/internal/cron"
	"github.com/hwahn/pricepulse/internal/jobs"
)

// schedulerCmd runs the scheduled jobs without the API or the ingest loop.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled jobs headless",
	Long: `Runs only the cron-scheduled jobs:

- reconcile:        08:15, 12:15, 18:15 ET weekdays
- close_refresh:    16:10 ET weekdays
- universe_rebuild: 07:30 ET weekdays

Example:
  go run ./cmd/pricepulse scheduler
  go run ./cmd/pricepulse scheduler run reconcile`,
	RunE: runSchedulerDaemon,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [job_name]",
	Short: "Run a registered job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulerJob,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func appJobs(app *app) []cron.Job {
	return []cron.Job{
		jobs.NewReconcileJob(app.engine, app.logger),
		jobs.NewCloseRefreshJob(app.refresh, app.logger),
		app.universe,
	}
}

func buildScheduler(app *app) (*cron.Scheduler, error) {
	sched := cron.New(app.logger)
	for _, job := range appJobs(app) {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("register job: %w", err)
		}
	}
	return sched, nil
}

func runSchedulerDaemon(cmd *cobra.Command, args []string) error {
	fmt.Println("=== PricePulse Scheduler ===")

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	sched, err := buildScheduler(app)
	if err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	jobName := args[0]
	for _, job := range appJobs(app) {
		if job.Name() != jobName {
			continue
		}

		fmt.Printf("Running job %s...\n", jobName)
		if err := job.Run(cmd.Context()); err != nil {
			return fmt.Errorf("job %s: %w", jobName, err)
		}
		fmt.Println("Done")
		return nil
	}

	return fmt.Errorf("job %s not found", jobName)
}
