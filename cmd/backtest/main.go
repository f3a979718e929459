package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/facubara/alphaboard/internal/backtest"
	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
)

const dateLayout = "2006-01-02"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	archetype := flag.String("archetype", "momentum", "Strategy archetype to replay")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to backtest")
	timeframe := flag.String("timeframe", "1h", "Candle timeframe")
	startStr := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "End date (YYYY-MM-DD), defaults to now")
	balance := flag.Float64("balance", 10000, "Initial balance in USDT")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	tf := exchange.Timeframe(*timeframe)
	if !tf.Valid() {
		log.Fatal().Str("timeframe", *timeframe).Msg("Unknown timeframe")
	}

	start, err := time.Parse(dateLayout, *startStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -start date")
	}
	end := time.Now()
	if *endStr != "" {
		end, err = time.Parse(dateLayout, *endStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -end date")
		}
	}
	if !end.After(start) {
		log.Fatal().Msg("-end must be after -start")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	engine := backtest.NewEngine(store, exchange.NewClient(cfg.Exchange), cfg.Trading)

	run, err := engine.Run(ctx, backtest.Params{
		Archetype:      *archetype,
		Symbol:         *symbol,
		Timeframe:      tf,
		Start:          start,
		End:            end,
		InitialBalance: decimal.NewFromFloat(*balance),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	winRate := 0.0
	if run.TotalTrades > 0 {
		winRate = float64(run.WinningTrades) / float64(run.TotalTrades) * 100
	}

	fmt.Printf("\nBacktest %s (%s)\n", run.ID, run.Status)
	fmt.Printf("  %s %s %s  %s to %s\n", *archetype, *symbol, *timeframe,
		start.Format(dateLayout), end.Format(dateLayout))
	fmt.Printf("  Initial balance:  %s\n", run.InitialBalance.StringFixed(2))
	fmt.Printf("  Final equity:     %s\n", run.FinalEquity.StringFixed(2))
	fmt.Printf("  Total PnL:        %s\n", run.TotalPnL.StringFixed(2))
	fmt.Printf("  Trades:           %d (%.1f%% winners)\n", run.TotalTrades, winRate)
	fmt.Printf("  Max drawdown:     %.2f%%\n", run.MaxDrawdownPct)
	fmt.Printf("  Sharpe ratio:     %.2f\n", run.SharpeRatio)
}
