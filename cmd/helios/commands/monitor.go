package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/regime"
	"github.com/wonny/helios/internal/scheduler"
	"github.com/wonny/helios/internal/scheduler/jobs"
	"github.com/wonny/helios/internal/universe"
	"github.com/wonny/helios/internal/weights"
	"github.com/wonny/helios/pkg/redis"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the daily post-close monitor",
	Long: `Schedules the daily monitoring job: after the close it classifies
the regime, rebuilds target weights from the latest panel, and logs
what a rebalance would do. The regime snapshot is cached in Redis
when enabled.

Example:
  go run ./cmd/helios monitor
  go run ./cmd/helios monitor --once`,
	RunE: runMonitor,
}

var monitorOnce bool

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run one monitoring pass and exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}

	client, err := redis.New(rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(client, "helios")

	job := jobs.NewMonitorJob(
		rt.cfg,
		universe.NewSelector(rt.strategy.Universe, rt.log),
		weights.NewSynthesizer(rt.strategy.Weights, rt.log),
		regime.NewClassifier(rt.strategy.Regime, rt.log),
		cache,
		rt.log,
	)

	if monitorOnce {
		return job.Run(cmd.Context())
	}

	loc, err := jobs.LoadLocation(rt.cfg)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	sched := scheduler.New(rt.log, loc)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("schedule monitor job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	fmt.Printf("Monitor scheduled (%s, %s). Ctrl+C to stop.\n",
		rt.cfg.Scheduler.MonitorCron, rt.cfg.Scheduler.Timezone)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-cmd.Context().Done():
	}

	rt.log.Info("Monitor stopping")
	return nil
}
