package exchange

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/facubara/alphaboard/internal/config"
)

// CandleSource is the read-only market data surface consumed by the pipeline
// and the backtest engine.
type CandleSource interface {
	ListActiveSymbols(ctx context.Context, minQuoteVolume float64) ([]SymbolInfo, error)
	FetchCandles(ctx context.Context, symbol string, interval Timeframe, limit int) ([]Candle, error)
	FetchCandleBatch(ctx context.Context, symbols []string, interval Timeframe, limit int) (map[string][]Candle, error)
	FetchHistoricalCandles(ctx context.Context, symbol string, interval Timeframe, start, end time.Time) ([]Candle, error)
}

// Client is a rate-limited, read-only client for the public spot exchange
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	timeout time.Duration
	maxConc int
	logger  zerolog.Logger
}

// NewClient creates a read-only exchange client. No API keys are needed for
// the public market-data endpoints.
func NewClient(cfg config.ExchangeConfig) *Client {
	api := binance.NewClient("", "")
	if cfg.BaseURL != "" {
		api.BaseURL = cfg.BaseURL
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 10
	}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(cfg.GetSpacing()), 1),
		breaker: breaker,
		retry:   retry,
		timeout: cfg.GetRequestTimeout(),
		maxConc: maxConc,
		logger:  config.NewLogger("exchange"),
	}
}

// call applies the inter-request spacing, circuit breaker and retry budget
// around a single exchange request.
func (c *Client) call(ctx context.Context, op RetryableOperation) error {
	return WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, op()
		})
		return err
	})
}

// ListActiveSymbols returns USDT-quoted spot symbols that are trading-enabled
// with a 24h quote volume at or above the floor, sorted descending by volume.
func (c *Client) ListActiveSymbols(ctx context.Context, minQuoteVolume float64) ([]SymbolInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var info *binance.ExchangeInfo
	err := c.call(ctx, func() error {
		var opErr error
		info, opErr = c.api.NewExchangeInfoService().Do(ctx)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	eligible := make(map[string]SymbolInfo, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != "USDT" || !s.IsSpotTradingAllowed {
			continue
		}
		eligible[s.Symbol] = SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
	}

	var stats []*binance.PriceChangeStats
	err = c.call(ctx, func() error {
		var opErr error
		stats, opErr = c.api.NewListPriceChangeStatsService().Do(ctx)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	symbols := make([]SymbolInfo, 0, len(eligible))
	for _, st := range stats {
		sym, ok := eligible[st.Symbol]
		if !ok {
			continue
		}
		quoteVolume, _ := strconv.ParseFloat(st.QuoteVolume, 64)
		if quoteVolume < minQuoteVolume {
			continue
		}
		sym.QuoteVolume = quoteVolume
		sym.LastPrice, _ = strconv.ParseFloat(st.LastPrice, 64)
		symbols = append(symbols, sym)
	}

	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].QuoteVolume > symbols[j].QuoteVolume
	})

	c.logger.Info().
		Int("symbols", len(symbols)).
		Float64("min_quote_volume", minQuoteVolume).
		Msg("Active symbol universe fetched")

	return symbols, nil
}

// FetchCandles returns the most recent limit candles, ascending by open time
func (c *Client) FetchCandles(ctx context.Context, symbol string, interval Timeframe, limit int) ([]Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var klines []*binance.Kline
	err := c.call(ctx, func() error {
		var opErr error
		klines, opErr = c.api.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			Limit(limit).
			Do(ctx)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	return convertKlines(klines), nil
}

// FetchCandleBatch fetches candles for many symbols with a bounded concurrency
// window. Symbols that fail individually are omitted, not fatal.
func (c *Client) FetchCandleBatch(ctx context.Context, symbols []string, interval Timeframe, limit int) (map[string][]Candle, error) {
	results := make(map[string][]Candle, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConc)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			candles, err := c.FetchCandles(gctx, symbol, interval, limit)
			if err != nil {
				c.logger.Warn().
					Err(err).
					Str("symbol", symbol).
					Str("interval", string(interval)).
					Msg("Dropping symbol from batch after fetch failure")
				return nil // individual failures do not poison the batch
			}
			mu.Lock()
			results[symbol] = candles
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// FetchHistoricalCandles paginates backwards until the [start, end] window is
// covered. Used only by the backtest engine.
func (c *Client) FetchHistoricalCandles(ctx context.Context, symbol string, interval Timeframe, start, end time.Time) ([]Candle, error) {
	const pageSize = 1000

	var pages [][]Candle
	cursor := end

	// Each request carries only an end time: the exchange then returns the
	// most recent pageSize candles at or before it, so stepping the cursor
	// past each page's earliest candle walks the whole window. A start time
	// in the same request would anchor every page at the window start.
	for {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		var klines []*binance.Kline
		err := c.call(reqCtx, func() error {
			var opErr error
			klines, opErr = c.api.NewKlinesService().
				Symbol(symbol).
				Interval(string(interval)).
				EndTime(cursor.UnixMilli()).
				Limit(pageSize).
				Do(reqCtx)
			return opErr
		})
		cancel()
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}

		page := convertKlines(klines)
		pages = append(pages, page)

		earliest := page[0].OpenTime
		if !earliest.After(start) || len(page) < pageSize {
			break
		}
		// Next page ends just before the earliest candle we have
		cursor = earliest.Add(-time.Millisecond)
	}

	// Pages were collected newest-first; stitch them oldest-first, trimming
	// the overshoot before the window start.
	var candles []Candle
	for i := len(pages) - 1; i >= 0; i-- {
		for _, candle := range pages[i] {
			if candle.OpenTime.Before(start) || candle.OpenTime.After(end) {
				continue
			}
			candles = append(candles, candle)
		}
	}

	c.logger.Info().
		Str("symbol", symbol).
		Str("interval", string(interval)).
		Int("candles", len(candles)).
		Time("start", start).
		Time("end", end).
		Msg("Historical candles fetched")

	return candles, nil
}

func convertKlines(klines []*binance.Kline) []Candle {
	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)
		quoteVolume, _ := strconv.ParseFloat(k.QuoteAssetVolume, 64)

		candles = append(candles, Candle{
			OpenTime:    time.UnixMilli(k.OpenTime),
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closePrice,
			Volume:      volume,
			CloseTime:   time.UnixMilli(k.CloseTime),
			QuoteVolume: quoteVolume,
			TradeCount:  k.TradeNum,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	return candles
}
