package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/data"
	"github.com/wonny/helios/internal/regime"
	"github.com/wonny/helios/internal/weights"
	"github.com/wonny/helios/pkg/config"
	"github.com/wonny/helios/pkg/logger"
	"github.com/wonny/helios/pkg/redis"
)

// MonitorJob runs the daily post-close check: classify the regime, build
// the current target weights, and log what a rebalance would do.
// SSOT: the monitoring schedule lives only in this job.
type MonitorJob struct {
	cfg        *config.Config
	selector   contracts.UniverseSelector
	synth      contracts.WeightSynthesizer
	classifier contracts.RegimeClassifier
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewMonitorJob creates the daily monitor job. cache may be backed by a
// disabled client; the regime snapshot write is then skipped.
func NewMonitorJob(
	cfg *config.Config,
	selector contracts.UniverseSelector,
	synth contracts.WeightSynthesizer,
	classifier contracts.RegimeClassifier,
	cache *redis.Cache,
	log *logger.Logger,
) *MonitorJob {
	return &MonitorJob{
		cfg:        cfg,
		selector:   selector,
		synth:      synth,
		classifier: classifier,
		cache:      cache,
		logger:     log,
	}
}

// Name returns the job name
func (j *MonitorJob) Name() string {
	return "daily_monitor"
}

// Schedule returns the cron schedule (post-close, exchange timezone)
func (j *MonitorJob) Schedule() string {
	return j.cfg.Scheduler.MonitorCron
}

// Run executes one monitoring pass over the latest panel data.
func (j *MonitorJob) Run(ctx context.Context) error {
	j.logger.Info("Starting daily monitor")

	panel, err := data.LoadPanel(j.cfg.Data.PanelDir)
	if err != nil {
		return fmt.Errorf("load panel: %w", err)
	}
	index, err := data.LoadSeries(j.cfg.Data.IndexFile, "INDEX")
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	var proxy *contracts.PriceSeries
	if j.cfg.Data.ProxyFile != "" {
		proxy, err = data.LoadSeries(j.cfg.Data.ProxyFile, "PROXY")
		if err != nil {
			return fmt.Errorf("load proxy: %w", err)
		}
	}

	asOf := index.Bars[index.Len()-1].Date

	obs, err := regime.NewObservationBuilder(index, proxy).Build(asOf, 0)
	if err != nil {
		return fmt.Errorf("build observation: %w", err)
	}
	state, err := j.classifier.Classify(ctx, obs)
	if err != nil {
		return fmt.Errorf("classify regime: %w", err)
	}

	universe, signals, err := j.selector.Select(ctx, panel, asOf)
	if err != nil {
		return fmt.Errorf("select universe: %w", err)
	}
	wv, err := j.synth.Synthesize(ctx, universe, signals)
	if err != nil {
		return fmt.Errorf("synthesize weights: %w", err)
	}
	weights.ApplyExposure(wv, state.Exposure)

	j.logger.WithFields(map[string]interface{}{
		"as_of":     asOf.Format("2006-01-02"),
		"regime":    string(state.Regime),
		"exposure":  state.Exposure,
		"cadence":   string(state.Cadence),
		"positions": wv.Count(),
		"cash":      wv.Cash,
		"hhi":       wv.HHI(),
	}).Info("Daily monitor snapshot")

	if err := j.cache.Set(ctx, redis.RegimeKey(asOf.Format("2006-01-02")), state, redis.TTLDaily); err != nil {
		j.logger.WithError(err).Warn("Failed to cache regime state")
	}

	return nil
}

// LoadLocation resolves the configured exchange timezone.
func LoadLocation(cfg *config.Config) (*time.Location, error) {
	return time.LoadLocation(cfg.Scheduler.Timezone)
}
