package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/regime"
)

// regimeCmd represents the regime command
var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Market regime classification",
	Long: `Classifies the market regime from the index and volatility proxy
series and reports the resulting exposure and rebalance cadence.

Example:
  go run ./cmd/helios regime classify
  go run ./cmd/helios regime classify --date 2020-03-20`,
}

var (
	regimeClassifyCmd = &cobra.Command{
		Use:   "classify",
		Short: "Classify the regime as of a date",
		RunE:  runRegimeClassify,
	}

	// Flags
	regimeDate string
)

func init() {
	rootCmd.AddCommand(regimeCmd)
	regimeCmd.AddCommand(regimeClassifyCmd)

	regimeClassifyCmd.Flags().StringVar(&regimeDate, "date", "", "as-of date (YYYY-MM-DD, default: last session)")
}

func runRegimeClassify(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	md, err := loadMarketData(rt)
	if err != nil {
		return err
	}
	asOf, err := resolveAsOf(regimeDate, md.index)
	if err != nil {
		return err
	}

	obs, err := regime.NewObservationBuilder(md.index, md.proxy).Build(asOf, 0)
	if err != nil {
		return fmt.Errorf("build observation: %w", err)
	}
	state, err := regime.NewClassifier(rt.strategy.Regime, rt.log).Classify(cmd.Context(), obs)
	if err != nil {
		return fmt.Errorf("classify regime: %w", err)
	}

	PrintDoubleSeparator()
	fmt.Printf("  Regime as of %s\n", asOf.Format("2006-01-02"))
	PrintDoubleSeparator()

	fmt.Println("\nObservation")
	PrintKeyValue("Vol proxy", fmt.Sprintf("%.2f", obs.VolProxy), 14)
	PrintKeyValue("Index close", fmt.Sprintf("%.2f", obs.IndexClose), 14)
	PrintKeyValue("Index MA200", fmt.Sprintf("%.2f", obs.IndexMA200), 14)
	PrintKeyValue("Index drawdown", formatPct(-obs.IndexDrawdown), 14)
	PrintKeyValue("Realized vol", formatPct(obs.RealizedVol), 14)
	PrintKeyValue("Vol of vol", fmt.Sprintf("%.2f", obs.VolOfVol), 14)

	fmt.Println("\nClassification")
	PrintKeyValue("Regime", string(state.Regime), 14)
	PrintKeyValue("Crash risk", fmt.Sprintf("%.2f", state.CrashRisk), 14)
	PrintKeyValue("Exposure", fmt.Sprintf("%.2f", state.Exposure), 14)
	PrintKeyValue("Cadence", string(state.Cadence), 14)
	PrintKeyValue("Vol target", fmt.Sprintf("%.2f", state.VolTarget), 14)
	if state.IsDefensive() {
		fmt.Println("\n  Defensive regime: exposure is reduced")
	}
	fmt.Println()

	return nil
}
