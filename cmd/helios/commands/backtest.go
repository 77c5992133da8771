package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/audit"
	"github.com/wonny/helios/internal/backtest"
	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/regime"
	"github.com/wonny/helios/internal/scoring"
	"github.com/wonny/helios/internal/store"
	"github.com/wonny/helios/internal/strategyconfig"
	"github.com/wonny/helios/internal/universe"
	"github.com/wonny/helios/internal/weights"
	"github.com/wonny/helios/pkg/database"
	"github.com/wonny/helios/pkg/redis"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the strategy over historical data",
	Long: `Simulates the full pipeline day by day over the CSV price panel:
universe selection, weight synthesis, regime-scaled exposure, and
transaction-cost accounting, followed by a performance audit.

Example:
  go run ./cmd/helios backtest run --from 2020-01-01 --to 2023-12-31
  go run ./cmd/helios backtest run --from 2020-01-01 --weighting equal,momentum,inverse_vol`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs the simulation between --from and --to over the configured
price panel. Passing several --weighting values runs one backtest per
base weighting and prints a comparison table.

Example:
  go run ./cmd/helios backtest run --from 2020-01-01 --to 2023-12-31
  go run ./cmd/helios backtest run --from 2020-01-01 --weighting momentum --save
  go run ./cmd/helios backtest run --from 2020-01-01 --sentiment-file data/sentiment.json`,
		RunE: runBacktest,
	}

	// Flags
	backtestFrom          string
	backtestTo            string
	backtestWeightings    []string
	backtestSentimentFile string
	backtestRiskFile      string
	backtestSave          bool
	backtestProject       bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD, required)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default: today)")
	backtestRunCmd.Flags().StringSliceVar(&backtestWeightings, "weighting", nil, "base weightings to compare (equal|momentum|inverse_vol)")
	backtestRunCmd.Flags().StringVar(&backtestSentimentFile, "sentiment-file", "", "JSON file of symbol -> sentiment score")
	backtestRunCmd.Flags().StringVar(&backtestRiskFile, "risk-file", "", "JSON file of symbol -> risk score")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run (requires DB_ENABLED=true)")
	backtestRunCmd.Flags().BoolVar(&backtestProject, "project", false, "bootstrap a one-month forward projection")

	backtestRunCmd.MarkFlagRequired("from")
}

// backtestResult pairs one weighting variant with its ledger and audit.
type backtestResult struct {
	Weighting string
	Strategy  *strategyconfig.Config
	Ledger    *contracts.BacktestLedger
	Report    *contracts.PerformanceReport
}

func runBacktest(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}

	startDate, err := parseDate(backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	endDate := time.Now()
	if backtestTo != "" {
		endDate, err = parseDate(backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}
	if !endDate.After(startDate) {
		return fmt.Errorf("end date must be after start date")
	}

	md, err := loadMarketData(rt)
	if err != nil {
		return err
	}

	sentiment, risk, err := initScorers(rt)
	if err != nil {
		return err
	}

	weightings := backtestWeightings
	if len(weightings) == 0 {
		weightings = []string{rt.strategy.Weights.BaseWeighting}
	}
	for _, w := range weightings {
		switch w {
		case "equal", "momentum", "inverse_vol":
		default:
			return fmt.Errorf("unknown weighting %q (want equal, momentum, or inverse_vol)", w)
		}
	}

	fmt.Println("=== Helios Backtest ===")
	fmt.Printf("Period:    %s ~ %s\n", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	fmt.Printf("Strategy:  %s (%s)\n", rt.strategy.Meta.StrategyID, rt.strategy.Meta.Version)
	fmt.Printf("Symbols:   %d\n", len(md.panel))
	fmt.Printf("Cadence:   %s\n", rt.strategy.Backtest.RebalanceCadence)
	fmt.Println()

	reporter := audit.NewReporter(rt.log)
	results := make([]backtestResult, 0, len(weightings))

	for _, weighting := range weightings {
		strategy := *rt.strategy
		strategy.Weights.BaseWeighting = weighting

		label := strategy.Meta.StrategyID
		if len(weightings) > 1 {
			label = fmt.Sprintf("%s-%s", strategy.Meta.StrategyID, weighting)
		}

		engine := backtest.NewEngine(
			&strategy,
			universe.NewSelector(strategy.Universe, rt.log),
			weights.NewSynthesizer(strategy.Weights, rt.log),
			regime.NewClassifier(strategy.Regime, rt.log),
			sentiment,
			risk,
			rt.log,
		)

		ledger, err := engine.Run(cmd.Context(), backtest.RunParams{
			Panel:    md.panel,
			Index:    md.index,
			Proxy:    md.proxy,
			Start:    startDate,
			End:      endDate,
			Strategy: label,
		})
		if err != nil {
			// a truncated ledger prefix is still auditable
			if ledger == nil || len(ledger.Entries) == 0 {
				return fmt.Errorf("backtest %s: %w", weighting, err)
			}
			rt.log.WithError(err).Warn("Backtest stopped early, auditing the partial ledger")
		}

		report, err := reporter.Analyze(cmd.Context(), ledger)
		if err != nil {
			return fmt.Errorf("audit %s: %w", weighting, err)
		}

		results = append(results, backtestResult{
			Weighting: weighting,
			Strategy:  &strategy,
			Ledger:    ledger,
			Report:    report,
		})
	}

	for _, res := range results {
		printBacktestResult(&res)

		if backtestProject {
			mc := audit.NewMonteCarlo(audit.DefaultMonteCarloConfig(), rt.log)
			projection, err := mc.Project(cmd.Context(), res.Ledger)
			if err != nil {
				return fmt.Errorf("project %s: %w", res.Weighting, err)
			}
			printProjection(projection)
		}
	}
	if len(results) > 1 {
		printComparison(results)
	}

	if backtestSave {
		if err := saveResults(cmd, rt, results); err != nil {
			return err
		}
	}

	return nil
}

// initScorers builds the optional sentiment and risk scorers from score
// files, caching through Redis when enabled. Either may come back nil.
func initScorers(rt *runtime) (contracts.SentimentScorer, contracts.RiskScorer, error) {
	if backtestSentimentFile == "" && backtestRiskFile == "" {
		return nil, nil, nil
	}

	client, err := redis.New(rt.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(client, "helios")

	var sentiment contracts.SentimentScorer
	if backtestSentimentFile != "" {
		static, err := scoring.NewStaticFromFile(backtestSentimentFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load sentiment scores: %w", err)
		}
		sentiment = scoring.NewCachedSentiment(static, cache)
	}

	var risk contracts.RiskScorer
	if backtestRiskFile != "" {
		static, err := scoring.NewStaticFromFile(backtestRiskFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load risk scores: %w", err)
		}
		risk = scoring.NewCachedRisk(static, cache)
	}

	return sentiment, risk, nil
}

// saveResults persists each run's ledger, report, and decision snapshot.
func saveResults(cmd *cobra.Command, rt *runtime, results []backtestResult) error {
	if !rt.cfg.Database.Enabled {
		return fmt.Errorf("--save requires DB_ENABLED=true and DATABASE_URL")
	}

	db, err := database.New(rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := store.NewRunRepository(db.Pool)
	if err := repo.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	for _, res := range results {
		snapshot, err := strategyconfig.NewDecisionSnapshot(res.Strategy, rt.yamlData, "")
		if err != nil {
			return fmt.Errorf("build snapshot: %w", err)
		}

		id := store.NewRunID(res.Ledger.Strategy)
		if err := repo.SaveRun(cmd.Context(), id, res.Ledger, res.Report, snapshot); err != nil {
			return fmt.Errorf("save run %s: %w", id, err)
		}

		fmt.Printf("Saved run %s\n", id)
		rt.log.WithFields(map[string]interface{}{
			"run_id":    id,
			"weighting": res.Weighting,
		}).Info("Backtest run persisted")
	}

	return nil
}

func printBacktestResult(res *backtestResult) {
	report := res.Report

	PrintDoubleSeparator()
	fmt.Printf("  %s (%s weighting)\n", res.Ledger.Strategy, res.Weighting)
	PrintDoubleSeparator()

	fmt.Println("\nSummary")
	PrintKeyValue("Period", report.Period, 14)
	PrintKeyValue("Trading days", fmt.Sprintf("%d", report.Days), 14)
	PrintKeyValue("Rebalances", fmt.Sprintf("%d", report.Rebalances), 14)
	if res.Ledger.Truncated {
		PrintKeyValue("Truncated", "yes (partial ledger)", 14)
	}

	fmt.Println("\nPerformance")
	PrintKeyValue("Initial value", formatMoney(res.Ledger.InitialValue), 14)
	PrintKeyValue("Final value", formatMoney(res.Ledger.FinalValue()), 14)
	PrintKeyValue("Total return", formatPct(report.TotalReturn), 14)
	PrintKeyValue("Annual return", formatPct(report.AnnualReturn), 14)
	PrintKeyValue("Volatility", formatPct(report.Volatility), 14)

	fmt.Println("\nRisk")
	PrintKeyValue("Sharpe", fmt.Sprintf("%.2f %s", report.Sharpe, rateSharpe(report.Sharpe)), 14)
	PrintKeyValue("Sortino", fmt.Sprintf("%.2f", report.Sortino), 14)
	PrintKeyValue("Max drawdown", fmt.Sprintf("%s %s", formatPct(report.MaxDrawdown), rateDrawdown(report.MaxDrawdown)), 14)
	PrintKeyValue("Calmar", fmt.Sprintf("%.2f", report.Calmar), 14)
	PrintKeyValue("VaR 95%", formatPct(report.VaR95), 14)
	PrintKeyValue("CVaR 95%", formatPct(report.CVaR95), 14)

	fmt.Println("\nTrading")
	PrintKeyValue("Avg turnover", formatPct(report.AvgTurnover), 14)
	PrintKeyValue("Total costs", formatMoney(report.TotalCosts), 14)
	PrintKeyValue("Win rate", formatPct(report.WinRate), 14)
	PrintKeyValue("Best day", formatPct(report.BestDay), 14)
	PrintKeyValue("Worst day", formatPct(report.WorstDay), 14)
	fmt.Println()
}

// printComparison summarizes the weighting variants side by side.
func printComparison(results []backtestResult) {
	PrintDoubleSeparator()
	fmt.Println("  Weighting comparison")
	PrintDoubleSeparator()

	columns := []string{"Weighting", "Total", "Annual", "Vol", "Sharpe", "MaxDD", "Costs"}
	widths := []int{12, 9, 9, 8, 7, 8, 12}
	PrintTableHeader(columns, widths)
	for _, res := range results {
		r := res.Report
		PrintTableRow([]string{
			res.Weighting,
			formatPct(r.TotalReturn),
			formatPct(r.AnnualReturn),
			formatPct(r.Volatility),
			fmt.Sprintf("%.2f", r.Sharpe),
			formatPct(r.MaxDrawdown),
			formatMoney(r.TotalCosts),
		}, widths)
	}
	fmt.Println()
}

// printProjection summarizes the simulated horizon-return distribution.
func printProjection(p *audit.MonteCarloResult) {
	fmt.Printf("Projection (%d-day %s, %d paths)\n", p.Config.HorizonDays, p.Config.Method, p.Config.Simulations)
	PrintKeyValue("Mean return", formatPct(p.MeanReturn), 14)
	PrintKeyValue("Std dev", formatPct(p.StdDev), 14)
	PrintKeyValue("P(loss)", formatPct(p.ProbLoss), 14)
	PrintKeyValue("VaR 95%", formatPct(p.VaR95), 14)
	PrintKeyValue("CVaR 95%", formatPct(p.CVaR95), 14)
	PrintKeyValue("VaR 99%", formatPct(p.VaR99), 14)
	PrintKeyValue("Median", formatPct(p.Percentiles[50]), 14)
	fmt.Println()
}

func rateSharpe(sharpe float64) string {
	switch {
	case sharpe > 2.0:
		return "(excellent)"
	case sharpe > 1.0:
		return "(good)"
	case sharpe > 0.5:
		return "(fair)"
	default:
		return "(poor)"
	}
}

func rateDrawdown(mdd float64) string {
	switch {
	case mdd > -0.10:
		return "(excellent)"
	case mdd > -0.20:
		return "(good)"
	case mdd > -0.30:
		return "(fair)"
	default:
		return "(high)"
	}
}
