// Command backtest runs a daywise, event-driven backtest of a single
// instrument strategy against historical bar data and prints a performance
// report. Pass -serve to additionally expose Prometheus metrics while the
// run executes.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"daybacktest/internal/bar"
	"daybacktest/internal/config"
	"daybacktest/internal/databar"
	"daybacktest/internal/engine"
	"daybacktest/internal/execution"
	"daybacktest/internal/obslog"
	"daybacktest/internal/risk"
	"daybacktest/internal/strategyregistry"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML backtest configuration")
	serve := flag.Bool("serve", false, "expose Prometheus metrics at :<port>/metrics while the run executes")
	port := flag.String("port", "9102", "port for -serve")
	seed := flag.Int64("seed", 42, "RNG seed for cosmetic order-id suffixes (determinism across replays)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *configPath == "" {
		log.Fatal().Msg("backtest: -config is required")
	}

	log.Info().Str("version", version).Str("config", *configPath).Msg("starting backtest")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *serve {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info().Str("addr", ":"+*port).Msg("serving metrics")
			if err := http.ListenAndServe(":"+*port, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	result, err := run(cfg, *seed, *serve)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest run failed")
	}

	printReport(cfg.Data.Symbol, result)
}

func run(cfg config.Config, seed int64, instrumented bool) (engine.Result, error) {
	bars, err := databar.LoadBarsCSV(cfg.Data.BarsPath)
	if err != nil {
		return engine.Result{}, fmt.Errorf("loading bars: %w", err)
	}
	stream, err := bar.NewSliceStream(bars)
	if err != nil {
		return engine.Result{}, fmt.Errorf("building bar stream: %w", err)
	}

	strat, err := strategyregistry.Default().Build(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return engine.Result{}, fmt.Errorf("building strategy %q: %w", cfg.Strategy.Name, err)
	}

	sizer, err := risk.New(risk.Config{
		Method:           risk.Method(cfg.Risk.Method),
		RiskFraction:     cfg.Risk.RiskFraction,
		FixedSize:        cfg.Risk.FixedSize,
		VolatilityTarget: cfg.Risk.VolatilityTarget,
		VolLookback:      cfg.Risk.VolLookback,
		MaxPositionPct:   cfg.Risk.MaxPositionPct,
		MaxLeverage:      cfg.Risk.MaxLeverage,
		MaxPositions:     cfg.Risk.MaxPositions,
		StopLossPct:      cfg.Risk.StopLossPct,
		TakeProfitPct:    cfg.Risk.TakeProfitPct,
		ATRMultiplier:    cfg.Risk.ATRMultiplier,
		RiskRewardRatio:  cfg.Risk.RiskRewardRatio,
	})
	if err != nil {
		return engine.Result{}, fmt.Errorf("building risk sizer: %w", err)
	}

	var recorder engine.Recorder = obslog.Recorder{}
	if instrumented {
		recorder = instrumentedRecorder{Recorder: obslog.Recorder{}}
	}

	eng := engine.New(engine.Config{
		Strategy: strat,
		ExecutionModel: execution.Model{
			SlippageBps:   cfg.Execution.SlippageBps,
			CommissionBps: cfg.Execution.CommissionBps,
			TickSize:      cfg.Execution.TickSize,
			UseFirstTouch: cfg.Execution.FillModel != "close",
		},
		Sizer:        sizer,
		DedupeWindow: time.Duration(cfg.SignalQueue.DedupeWindowSeconds) * time.Second,
		InitialCash:  cfg.Capital.Initial,
		EODCloseAll:  cfg.EOD.CloseAllEOD,
		RiskFreeRate: cfg.Reporting.RiskFreeRate,
		Recorder:     recorder,
	}, rand.New(rand.NewSource(seed)))

	ctx := obslog.WithRunInfo(context.Background(), obslog.RunInfo{RunID: obslog.NewRunID(), Symbol: cfg.Data.Symbol})
	return eng.Run(ctx, stream)
}

func printReport(symbol string, result engine.Result) {
	r := result.Report
	log.Info().
		Str("symbol", symbol).
		Int("fills", len(result.Fills)).
		Int("snapshots", len(result.Snapshots)).
		Msg("backtest complete")

	fmt.Printf("\n--- %s backtest report ---\n", symbol)
	fmt.Printf("total return:     %.4f%%\n", r.TotalReturn*100)
	fmt.Printf("cagr:             %.4f%%\n", r.CAGR*100)
	fmt.Printf("volatility:       %.4f%%\n", r.Volatility*100)
	fmt.Printf("sharpe:           %.4f\n", r.Sharpe)
	fmt.Printf("sortino:          %.4f\n", r.Sortino)
	fmt.Printf("calmar:           %.4f\n", r.Calmar)
	fmt.Printf("max drawdown:     %.4f%% (%d steps)\n", r.MaxDrawdown*100, r.MaxDrawdownDuration)
	fmt.Printf("var95 / cvar95:   %.4f%% / %.4f%%\n", r.VaR95*100, r.CVaR95*100)
	fmt.Printf("win rate:         %.4f%%\n", r.WinRate*100)
	fmt.Printf("profit factor:    %.4f\n", r.ProfitFactor)
	fmt.Printf("expectancy:       %.4f\n", r.Expectancy)
	fmt.Printf("trades:           %d (%d wins / %d losses)\n", r.NumTrades, r.NumWins, r.NumLosses)
	fmt.Printf("total commission: %.4f\n", r.TotalCommission)
	fmt.Printf("total pnl:        %.4f\n", r.TotalPnL)
	fmt.Printf("initial capital:  %.2f\n", r.InitialCapital)
	fmt.Printf("final value:      %.2f\n", r.FinalValue)
	fmt.Printf("period:           %s -> %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
}
