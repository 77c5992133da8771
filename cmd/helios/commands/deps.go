package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/data"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/pkg/config"
	"github.com/wonny/helios/pkg/logger"
)

// runtime bundles the dependencies every command starts from.
type runtime struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	yamlData []byte // raw strategy YAML, nil when running on defaults
	log      *logger.Logger
}

// initRuntime loads environment config, the strategy YAML, and the logger.
// A missing strategy file falls back to the documented defaults.
func initRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	path := cfg.Strategy.Path
	if strategyFile != "" {
		path = strategyFile
	}

	strategy := strategyconfig.Default()
	var yamlData []byte
	if _, statErr := os.Stat(path); statErr == nil {
		strategy, yamlData, err = strategyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy %s: %w", path, err)
		}
		log.WithField("path", path).Debug("Strategy loaded")
	} else {
		log.WithField("path", path).Warn("Strategy file not found, using defaults")
	}

	return &runtime{
		cfg:      cfg,
		strategy: strategy,
		yamlData: yamlData,
		log:      log,
	}, nil
}

// marketData holds the price inputs shared by the pipeline commands.
type marketData struct {
	panel contracts.PricePanel
	index *contracts.PriceSeries
	proxy *contracts.PriceSeries // nil when no proxy file is configured
}

// loadMarketData reads the CSV panel, index, and optional volatility proxy.
func loadMarketData(rt *runtime) (*marketData, error) {
	panel, err := data.LoadPanel(rt.cfg.Data.PanelDir)
	if err != nil {
		return nil, fmt.Errorf("load panel %s: %w", rt.cfg.Data.PanelDir, err)
	}

	index, err := data.LoadSeries(rt.cfg.Data.IndexFile, "INDEX")
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", rt.cfg.Data.IndexFile, err)
	}

	var proxy *contracts.PriceSeries
	if rt.cfg.Data.ProxyFile != "" {
		proxy, err = data.LoadSeries(rt.cfg.Data.ProxyFile, "VOLPROXY")
		if err != nil {
			rt.log.WithError(err).Warn("Volatility proxy unavailable, falling back to realized vol")
			proxy = nil
		}
	}

	return &marketData{panel: panel, index: index, proxy: proxy}, nil
}

// parseDate parses a YYYY-MM-DD flag value.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// resolveAsOf returns the flag date or the last index session.
func resolveAsOf(flag string, index *contracts.PriceSeries) (time.Time, error) {
	if flag != "" {
		return parseDate(flag)
	}
	if index.Len() == 0 {
		return time.Time{}, fmt.Errorf("index series is empty")
	}
	return index.Bars[index.Len()-1].Date, nil
}
