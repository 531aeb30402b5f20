package obslog

import "context"

type contextKey string

const runIDKey contextKey = "run_id"
const symbolKey contextKey = "symbol"

// RunInfo carries trace identifiers through a request context.
type RunInfo struct {
	RunID  string
	Symbol string
}

// WithRunInfo attaches non-empty RunInfo fields to ctx.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.RunID != "" {
		ctx = context.WithValue(ctx, runIDKey, info.RunID)
	}
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	return ctx
}

// RunInfoFromContext reads back whatever RunInfo fields WithRunInfo set.
func RunInfoFromContext(ctx context.Context) RunInfo {
	info := RunInfo{}
	if v := ctx.Value(runIDKey); v != nil {
		if s, ok := v.(string); ok {
			info.RunID = s
		}
	}
	if v := ctx.Value(symbolKey); v != nil {
		if s, ok := v.(string); ok {
			info.Symbol = s
		}
	}
	return info
}
