package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/store"
	"github.com/wonny/helios/pkg/database"
)

// runsCmd represents the runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted backtest runs",
	Long: `Lists and shows backtest runs saved with backtest run --save.
Requires DB_ENABLED=true.

Example:
  go run ./cmd/helios runs list
  go run ./cmd/helios runs show momentum_sentiment_v1-20240101-120000.000`,
}

var (
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE:  runRunsList,
	}

	runsShowCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's performance report",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow,
	}

	// Flags
	runsLimit int
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}

func initRunRepository(rt *runtime) (*store.RunRepository, func(), error) {
	if !rt.cfg.Database.Enabled {
		return nil, nil, fmt.Errorf("runs commands require DB_ENABLED=true and DATABASE_URL")
	}
	db, err := database.New(rt.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return store.NewRunRepository(db.Pool), db.Close, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	repo, closeDB, err := initRunRepository(rt)
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := repo.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs saved yet.")
		return nil
	}

	columns := []string{"Run ID", "Period", "Truncated", "Created"}
	widths := []int{44, 23, 9, 16}
	PrintTableHeader(columns, widths)
	for _, run := range runs {
		truncated := ""
		if run.Truncated {
			truncated = "yes"
		}
		PrintTableRow([]string{
			run.ID,
			fmt.Sprintf("%s~%s", run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02")),
			truncated,
			run.CreatedAt.Format("2006-01-02 15:04"),
		}, widths)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	repo, closeDB, err := initRunRepository(rt)
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	ledger, err := repo.GetLedger(cmd.Context(), run.ID)
	if err != nil {
		return fmt.Errorf("get ledger: %w", err)
	}

	if run.Report == nil {
		fmt.Printf("Run %s has no stored report.\n", run.ID)
		return nil
	}

	printBacktestResult(&backtestResult{
		Weighting: "stored",
		Ledger:    ledger,
		Report:    run.Report,
	})
	PrintKeyValue("Config hash", run.ConfigHash, 14)
	fmt.Println()
	return nil
}
