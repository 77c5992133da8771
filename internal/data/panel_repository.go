package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/helios/internal/contracts"
)

// PanelRepository loads and stores daily bars in Postgres.
// SSOT: price persistence happens only here.
type PanelRepository struct {
	pool *pgxpool.Pool
}

// NewPanelRepository creates a panel repository.
func NewPanelRepository(pool *pgxpool.Pool) *PanelRepository {
	return &PanelRepository{pool: pool}
}

// EnsureSchema creates the price table when it does not exist.
func (r *PanelRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS helios;

		CREATE TABLE IF NOT EXISTS helios.daily_bars (
			symbol    TEXT NOT NULL,
			bar_date  DATE NOT NULL,
			adj_close DOUBLE PRECISION NOT NULL,
			volume    DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, bar_date)
		);
	`)
	return err
}

// GetSeries loads one symbol's bars within the date range.
func (r *PanelRepository) GetSeries(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT bar_date, adj_close, volume
		FROM helios.daily_bars
		WHERE symbol = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date ASC
	`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query series %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.AdjClose, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contracts.NewPriceSeries(symbol, bars), nil
}

// GetPanel loads every stored symbol's bars within the date range.
func (r *PanelRepository) GetPanel(ctx context.Context, from, to time.Time) (contracts.PricePanel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT symbol, bar_date, adj_close, volume
		FROM helios.daily_bars
		WHERE bar_date BETWEEN $1 AND $2
		ORDER BY symbol, bar_date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query panel: %w", err)
	}
	defer rows.Close()

	barsBySymbol := make(map[string][]contracts.Bar)
	for rows.Next() {
		var symbol string
		var b contracts.Bar
		if err := rows.Scan(&symbol, &b.Date, &b.AdjClose, &b.Volume); err != nil {
			return nil, err
		}
		barsBySymbol[symbol] = append(barsBySymbol[symbol], b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	panel := make(contracts.PricePanel, len(barsBySymbol))
	for symbol, bars := range barsBySymbol {
		panel[symbol] = contracts.NewPriceSeries(symbol, bars)
	}
	return panel, nil
}

// SaveSeries upserts a symbol's bars in bulk.
func (r *PanelRepository) SaveSeries(ctx context.Context, series *contracts.PriceSeries) error {
	if series.Len() == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// staging table keeps the upsert a single round trip per batch
	if _, err := tx.Exec(ctx, `
		CREATE TEMPORARY TABLE staging_bars
		(LIKE helios.daily_bars INCLUDING ALL) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	rows := make([][]interface{}, 0, series.Len())
	for _, b := range series.Bars {
		rows = append(rows, []interface{}{series.Symbol, b.Date, b.AdjClose, b.Volume})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"staging_bars"},
		[]string{"symbol", "bar_date", "adj_close", "volume"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy bars: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO helios.daily_bars (symbol, bar_date, adj_close, volume)
		SELECT symbol, bar_date, adj_close, volume FROM staging_bars
		ON CONFLICT (symbol, bar_date) DO UPDATE SET
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume
	`); err != nil {
		return fmt.Errorf("upsert bars: %w", err)
	}

	return tx.Commit(ctx)
}
