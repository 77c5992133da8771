package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/internal/data"
	"github.com/wonny/helios/pkg/database"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Price panel utilities",
	Long: `Inspects the CSV price panel and ingests it into PostgreSQL for
serving without the filesystem.

Example:
  go run ./cmd/helios data check
  go run ./cmd/helios data ingest`,
}

var (
	dataCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Summarize the configured price panel",
		RunE:  runDataCheck,
	}

	dataIngestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Load the CSV panel into PostgreSQL",
		RunE:  runDataIngest,
	}
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd)
	dataCmd.AddCommand(dataIngestCmd)
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	md, err := loadMarketData(rt)
	if err != nil {
		return err
	}

	minSessions := rt.strategy.Universe.MinHistorySessions()

	PrintDoubleSeparator()
	fmt.Println("  Price panel")
	PrintDoubleSeparator()
	PrintKeyValue("Panel dir", rt.cfg.Data.PanelDir, 10)
	PrintKeyValue("Symbols", fmt.Sprintf("%d", len(md.panel)), 10)
	PrintKeyValue("Index", fmt.Sprintf("%d sessions", md.index.Len()), 10)
	if md.proxy != nil {
		PrintKeyValue("Proxy", fmt.Sprintf("%d sessions", md.proxy.Len()), 10)
	} else {
		PrintKeyValue("Proxy", "none (realized-vol fallback)", 10)
	}
	fmt.Println()

	symbols := make([]string, 0, len(md.panel))
	for sym := range md.panel {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	columns := []string{"Symbol", "Sessions", "First", "Last", "Rankable"}
	widths := []int{8, 8, 11, 11, 8}
	PrintTableHeader(columns, widths)
	short := 0
	for _, sym := range symbols {
		series := md.panel[sym]
		rankable := "yes"
		if series.Len() < minSessions {
			rankable = "no"
			short++
		}
		PrintTableRow([]string{
			sym,
			fmt.Sprintf("%d", series.Len()),
			series.Bars[0].Date.Format("2006-01-02"),
			series.Bars[series.Len()-1].Date.Format("2006-01-02"),
			rankable,
		}, widths)
	}
	fmt.Println()
	if short > 0 {
		fmt.Printf("%d symbols below the %d-session history minimum will be skipped.\n", short, minSessions)
	}

	return nil
}

func runDataIngest(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	if !rt.cfg.Database.Enabled {
		return fmt.Errorf("data ingest requires DB_ENABLED=true and DATABASE_URL")
	}
	md, err := loadMarketData(rt)
	if err != nil {
		return err
	}

	db, err := database.New(rt.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := data.NewPanelRepository(db.Pool)
	if err := repo.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	series := make([]string, 0, len(md.panel))
	for sym := range md.panel {
		series = append(series, sym)
	}
	sort.Strings(series)

	bars := 0
	for _, sym := range series {
		s := md.panel[sym]
		if err := repo.SaveSeries(cmd.Context(), s); err != nil {
			return fmt.Errorf("save %s: %w", sym, err)
		}
		bars += s.Len()
	}
	if err := repo.SaveSeries(cmd.Context(), md.index); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if md.proxy != nil {
		if err := repo.SaveSeries(cmd.Context(), md.proxy); err != nil {
			return fmt.Errorf("save proxy: %w", err)
		}
	}

	fmt.Printf("Ingested %d symbols (%d bars) plus index", len(series), bars)
	if md.proxy != nil {
		fmt.Print(" and proxy")
	}
	fmt.Println(".")

	rt.log.WithFields(map[string]interface{}{
		"symbols": len(series),
		"bars":    bars,
	}).Info("Panel ingested")

	return nil
}
