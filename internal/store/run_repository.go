package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/internal/contracts"
	"github.com/wonny/helios/internal/strategyconfig"
)

// Run is one persisted backtest execution.
type Run struct {
	ID           string                       `json:"id"`
	Strategy     string                       `json:"strategy"`
	ConfigHash   string                       `json:"config_hash"`
	StartDate    time.Time                    `json:"start_date"`
	EndDate      time.Time                    `json:"end_date"`
	Truncated    bool                         `json:"truncated"`
	InitialValue float64                      `json:"initial_value"`
	Report       *contracts.PerformanceReport `json:"report,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// RunRepository persists backtest runs, their ledgers, and reports.
// SSOT: run persistence happens only here.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a run repository.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// NewRunID builds a time-ordered run identifier.
func NewRunID(strategy string) string {
	return fmt.Sprintf("%s-%s", strategy, time.Now().UTC().Format("20060102-150405.000"))
}

// EnsureSchema creates the run tables when they do not exist.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS helios;

		CREATE TABLE IF NOT EXISTS helios.runs (
			id          TEXT PRIMARY KEY,
			strategy    TEXT NOT NULL,
			config_hash TEXT NOT NULL,
			start_date  DATE NOT NULL,
			end_date    DATE NOT NULL,
			truncated   BOOLEAN NOT NULL DEFAULT FALSE,
			initial_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			report      JSONB,
			snapshot    JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS helios.ledger_entries (
			run_id       TEXT NOT NULL REFERENCES helios.runs(id) ON DELETE CASCADE,
			entry_date   DATE NOT NULL,
			value        DOUBLE PRECISION NOT NULL,
			daily_return DOUBLE PRECISION NOT NULL,
			weights      JSONB NOT NULL,
			cash         DOUBLE PRECISION NOT NULL,
			rebalanced   BOOLEAN NOT NULL,
			turnover     DOUBLE PRECISION NOT NULL,
			cost         DOUBLE PRECISION NOT NULL,
			regime       TEXT,
			exposure     DOUBLE PRECISION,
			warnings     JSONB,
			PRIMARY KEY (run_id, entry_date)
		);
	`)
	return err
}

// SaveRun stores a run, its full ledger, report, and config snapshot in one
// transaction. The config hash ties the ledger to the exact strategy file.
func (r *RunRepository) SaveRun(
	ctx context.Context,
	id string,
	ledger *contracts.BacktestLedger,
	report *contracts.PerformanceReport,
	snapshot *strategyconfig.DecisionSnapshot,
) error {
	if len(ledger.Entries) == 0 {
		return fmt.Errorf("store: refusing to save empty ledger %s", id)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO helios.runs (id, strategy, config_hash, start_date, end_date, truncated, initial_value, report, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, ledger.Strategy, snapshot.ConfigHash,
		ledger.Entries[0].Date, ledger.Entries[len(ledger.Entries)-1].Date,
		ledger.Truncated, ledger.InitialValue, reportJSON, snapshotJSON)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]interface{}, 0, len(ledger.Entries))
	for _, e := range ledger.Entries {
		weights, err := json.Marshal(e.Weights)
		if err != nil {
			return fmt.Errorf("marshal weights: %w", err)
		}
		warnings, err := json.Marshal(e.Warnings)
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		rows = append(rows, []interface{}{
			id, e.Date, e.Value, e.DailyReturn, weights, e.Cash,
			e.Rebalanced, e.Turnover, e.Cost, string(e.Regime), e.Exposure, warnings,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"helios", "ledger_entries"},
		[]string{"run_id", "entry_date", "value", "daily_return", "weights", "cash",
			"rebalanced", "turnover", "cost", "regime", "exposure", "warnings"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy ledger entries: %w", err)
	}

	return tx.Commit(ctx)
}

// GetRun loads run metadata and its report.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var reportJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, strategy, config_hash, start_date, end_date, truncated, initial_value, report, created_at
		FROM helios.runs
		WHERE id = $1
	`, id).Scan(&run.ID, &run.Strategy, &run.ConfigHash, &run.StartDate,
		&run.EndDate, &run.Truncated, &run.InitialValue, &reportJSON, &run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if len(reportJSON) > 0 {
		run.Report = &contracts.PerformanceReport{}
		if err := json.Unmarshal(reportJSON, run.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	return &run, nil
}

// GetLedger reconstructs a run's ledger from its stored entries.
func (r *RunRepository) GetLedger(ctx context.Context, id string) (*contracts.BacktestLedger, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT entry_date, value, daily_return, weights, cash, rebalanced, turnover, cost, regime, exposure, warnings
		FROM helios.ledger_entries
		WHERE run_id = $1
		ORDER BY entry_date ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query ledger %s: %w", id, err)
	}
	defer rows.Close()

	ledger := &contracts.BacktestLedger{
		Strategy:     run.Strategy,
		InitialValue: run.InitialValue,
		Truncated:    run.Truncated,
	}
	for rows.Next() {
		var e contracts.LedgerEntry
		var weights, warnings []byte
		var regime string
		if err := rows.Scan(&e.Date, &e.Value, &e.DailyReturn, &weights, &e.Cash,
			&e.Rebalanced, &e.Turnover, &e.Cost, &regime, &e.Exposure, &warnings); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(weights, &e.Weights); err != nil {
			return nil, fmt.Errorf("unmarshal weights: %w", err)
		}
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &e.Warnings); err != nil {
				return nil, fmt.Errorf("unmarshal warnings: %w", err)
			}
		}
		e.Regime = contracts.Regime(regime)
		ledger.Entries = append(ledger.Entries, e)
	}
	return ledger, rows.Err()
}

// ListRuns returns recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, strategy, config_hash, start_date, end_date, truncated, created_at
		FROM helios.runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Strategy, &run.ConfigHash,
			&run.StartDate, &run.EndDate, &run.Truncated, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
