// Package databar loads historical bars and signals from CSV files,
// modeled on the flexible timestamp parsing and price-only-column fallback
// of the original data loader this engine's bar stream replaces.
package databar

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"daybacktest/internal/bar"
	"daybacktest/internal/signal"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if unixSeconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unixSeconds, 0).UTC(), nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("databar: could not parse timestamp %q: %w", raw, lastErr)
}

func parseFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return v
}

// LoadBarsCSV reads a bar.csv file with header
// symbol,timestamp,open,high,low,close,volume. If only a "price" column is
// present instead of open/high/low/close, each row is expanded into a flat
// bar via bar.FromPrice.
func LoadBarsCSV(path string) ([]bar.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("databar: open %s: %w", path, err)
	}
	defer f.Close()
	return loadBars(f)
}

func loadBars(r io.Reader) ([]bar.Bar, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("databar: read header: %w", err)
	}
	col := indexColumns(header)

	priceOnly := col["price"] >= 0 && col["open"] < 0

	var bars []bar.Bar
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("databar: read row: %w", err)
		}

		symbol := row[col["symbol"]]
		ts, err := parseTimestamp(row[col["timestamp"]])
		if err != nil {
			return nil, err
		}

		var b bar.Bar
		if priceOnly {
			b, err = bar.FromPrice(symbol, ts, parseFloat(row[col["price"]]))
		} else {
			volume := 0.0
			if idx, ok := col["volume"]; ok && idx >= 0 {
				volume = parseFloat(row[idx])
			}
			b, err = bar.New(symbol, ts,
				parseFloat(row[col["open"]]), parseFloat(row[col["high"]]),
				parseFloat(row[col["low"]]), parseFloat(row[col["close"]]), volume)
		}
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// LoadSignalsCSV reads a signals.csv file with header
// symbol,timestamp,side,size,stop_loss,take_profit,reason.
func LoadSignalsCSV(path string) ([]signal.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("databar: open %s: %w", path, err)
	}
	defer f.Close()
	return loadSignals(f)
}

func loadSignals(r io.Reader) ([]signal.Signal, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("databar: read header: %w", err)
	}
	col := indexColumns(header)

	var signals []signal.Signal
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("databar: read row: %w", err)
		}
		ts, err := parseTimestamp(row[col["timestamp"]])
		if err != nil {
			return nil, err
		}
		sig := signal.Signal{
			Symbol:    row[col["symbol"]],
			Timestamp: ts,
			Side:      signal.Side(strings.ToLower(strings.TrimSpace(row[col["side"]]))),
		}
		if idx, ok := col["size"]; ok && idx >= 0 {
			sig.Size = parseFloat(row[idx])
		}
		if idx, ok := col["stop_loss"]; ok && idx >= 0 {
			sig.StopLoss = parseFloat(row[idx])
		}
		if idx, ok := col["take_profit"]; ok && idx >= 0 {
			sig.TakeProfit = parseFloat(row[idx])
		}
		if idx, ok := col["reason"]; ok && idx >= 0 {
			sig.Reason = row[idx]
		}
		if !sig.Side.Valid() {
			return nil, fmt.Errorf("databar: invalid side %q at %s", sig.Side, ts)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"symbol", "timestamp", "open", "high", "low", "close", "volume", "price", "side", "size", "stop_loss", "take_profit", "reason"} {
		if _, ok := col[required]; !ok {
			col[required] = -1
		}
	}
	return col
}
