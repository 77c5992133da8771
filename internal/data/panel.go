// Package data loads price panels from CSV files or Postgres.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/helios/internal/contracts"
)

const csvDateLayout = "2006-01-02"

// LoadSeries reads one symbol's daily bars from a CSV file with a
// date,adj_close,volume header. Rows may appear in any order; the series
// is sorted and de-duplicated on load.
func LoadSeries(path, symbol string) (*contracts.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	col, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var bars []contracts.Bar
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		line++

		date, err := time.Parse(csvDateLayout, record[col.date])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad date %q", path, line, record[col.date])
		}
		close, err := strconv.ParseFloat(record[col.close], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad close %q", path, line, record[col.close])
		}
		volume := 0.0
		if col.volume >= 0 {
			volume, err = strconv.ParseFloat(record[col.volume], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad volume %q", path, line, record[col.volume])
			}
		}
		bars = append(bars, contracts.Bar{Date: date, AdjClose: close, Volume: volume})
	}

	return contracts.NewPriceSeries(symbol, bars), nil
}

// LoadPanel reads every *.csv file in dir as one symbol's series, with the
// file stem as the symbol.
func LoadPanel(dir string) (contracts.PricePanel, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob panel dir %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files in panel dir %s", dir)
	}

	panel := make(contracts.PricePanel, len(files))
	for _, file := range files {
		symbol := strings.TrimSuffix(filepath.Base(file), ".csv")
		series, err := LoadSeries(file, symbol)
		if err != nil {
			return nil, err
		}
		panel[symbol] = series
	}
	return panel, nil
}

type columns struct {
	date   int
	close  int
	volume int
}

// columnIndex resolves the required columns from the header, accepting
// close as a fallback for adj_close. Volume is optional.
func columnIndex(header []string) (columns, error) {
	col := columns{date: -1, close: -1, volume: -1}
	closeFallback := -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			col.date = i
		case "adj_close", "adjclose":
			col.close = i
		case "close":
			closeFallback = i
		case "volume":
			col.volume = i
		}
	}
	if col.close < 0 {
		col.close = closeFallback
	}
	if col.date < 0 || col.close < 0 {
		return col, fmt.Errorf("missing date or adj_close column in header %v", header)
	}
	return col, nil
}
