// Package obslog is the engine's structured, machine-readable event log:
// one JSON object per call, enriched with trace identifiers carried
// through context.Context rather than ambient globals. Adapted from the
// teacher's observability package, trimmed of the agent/tool/memory
// helpers that belonged to its live trading service.
package obslog

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// Event writes one JSON-line log entry, merging in any RunInfo carried by
// ctx ahead of the supplied fields.
func Event(ctx context.Context, level, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.RunID != "" {
		payload["run_id"] = info.RunID
	}
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}

	for k, v := range fields {
		if err, ok := v.(error); ok {
			payload[k] = err.Error()
			continue
		}
		payload[k] = v
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// Fill logs a fill applied by the engine.
func Fill(ctx context.Context, symbol, orderID string, quantity, price, commission float64) {
	Event(ctx, "info", "fill", map[string]any{
		"order_id":   orderID,
		"symbol":     symbol,
		"quantity":   quantity,
		"price":      price,
		"commission": commission,
	})
}

// Rejection logs a non-fatal admission/sizing rejection.
func Rejection(ctx context.Context, code, symbol, message string) {
	Event(ctx, "warn", "rejection", map[string]any{
		"code":    code,
		"symbol":  symbol,
		"message": message,
	})
}

// DayBoundary logs a day-start or day-end transition.
func DayBoundary(ctx context.Context, kind, day string, equity float64) {
	Event(ctx, "info", "day_boundary", map[string]any{
		"kind":   kind,
		"day":    day,
		"equity": equity,
	})
}
