package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/regime"
	"github.com/wonny/helios/internal/universe"
	"github.com/wonny/helios/internal/weights"
)

// weightsCmd represents the weights command
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Target weight synthesis",
	Long: `Builds the current target allocation from the price panel:
momentum universe selection, base weighting, sentiment tilt, position
cap, and regime-scaled exposure.

Example:
  go run ./cmd/helios weights generate
  go run ./cmd/helios weights generate --date 2023-06-30`,
}

var (
	weightsGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate target weights as of a date",
		RunE:  runWeightsGenerate,
	}

	// Flags
	weightsDate string
)

func init() {
	rootCmd.AddCommand(weightsCmd)
	weightsCmd.AddCommand(weightsGenerateCmd)

	weightsGenerateCmd.Flags().StringVar(&weightsDate, "date", "", "as-of date (YYYY-MM-DD, default: last session)")
}

func runWeightsGenerate(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	md, err := loadMarketData(rt)
	if err != nil {
		return err
	}
	asOf, err := resolveAsOf(weightsDate, md.index)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	obs, err := regime.NewObservationBuilder(md.index, md.proxy).Build(asOf, 0)
	if err != nil {
		return fmt.Errorf("build observation: %w", err)
	}
	state, err := regime.NewClassifier(rt.strategy.Regime, rt.log).Classify(ctx, obs)
	if err != nil {
		return fmt.Errorf("classify regime: %w", err)
	}

	uni, signals, err := universe.NewSelector(rt.strategy.Universe, rt.log).Select(ctx, md.panel, asOf)
	if err != nil {
		return fmt.Errorf("select universe: %w", err)
	}
	wv, err := weights.NewSynthesizer(rt.strategy.Weights, rt.log).Synthesize(ctx, uni, signals)
	if err != nil {
		return fmt.Errorf("synthesize weights: %w", err)
	}
	weights.ApplyExposure(wv, state.Exposure)
	wv.SortBySymbol()

	PrintDoubleSeparator()
	fmt.Printf("  Target weights as of %s\n", asOf.Format("2006-01-02"))
	PrintDoubleSeparator()
	PrintKeyValue("Strategy", rt.strategy.Meta.StrategyID, 10)
	PrintKeyValue("Regime", fmt.Sprintf("%s (exposure %.2f)", state.Regime, state.Exposure), 10)
	PrintKeyValue("Positions", fmt.Sprintf("%d", wv.Count()), 10)
	PrintKeyValue("Cash", formatPct(wv.Cash), 10)
	PrintKeyValue("HHI", fmt.Sprintf("%.4f", wv.HHI()), 10)
	fmt.Println()

	columns := []string{"Symbol", "Weight", "Base", "Tilted", "Capped", "Reduced"}
	widths := []int{8, 9, 9, 9, 9, 7}
	PrintTableHeader(columns, widths)
	for _, pos := range wv.Positions {
		reduced := ""
		if pos.Reduced {
			reduced = "yes"
		}
		PrintTableRow([]string{
			pos.Symbol,
			fmt.Sprintf("%.4f", pos.Weight),
			fmt.Sprintf("%.4f", pos.BaseWeight),
			fmt.Sprintf("%.4f", pos.TiltedWeight),
			fmt.Sprintf("%.4f", pos.CappedWeight),
			reduced,
		}, widths)
	}
	fmt.Println()

	return nil
}
