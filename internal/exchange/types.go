package exchange

import (
	"fmt"
	"time"
)

// Timeframe is a candle interval supported by the pipeline
type Timeframe string

const (
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

// AllTimeframes lists the supported intervals in ascending duration order
var AllTimeframes = []Timeframe{
	Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d, Timeframe1w,
}

// Duration returns the bar length of the timeframe
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	case Timeframe1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Valid reports whether the timeframe is one of the supported intervals
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// Candle represents one OHLCV bar
type Candle struct {
	OpenTime    time.Time `json:"open_time"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	CloseTime   time.Time `json:"close_time"`
	QuoteVolume float64   `json:"quote_volume"`
	TradeCount  int64     `json:"trade_count"`
}

// SymbolInfo describes a tradable instrument from the exchange universe
type SymbolInfo struct {
	Symbol      string  `json:"symbol"`
	BaseAsset   string  `json:"base_asset"`
	QuoteAsset  string  `json:"quote_asset"`
	QuoteVolume float64 `json:"quote_volume"` // 24h quote volume
	LastPrice   float64 `json:"last_price"`
}

// APIError is a typed exchange failure carrying the upstream code and message.
// Retry exhaustion surfaces one of these; callers drop the symbol, not the run.
type APIError struct {
	StatusCode int    // HTTP status when known, 0 otherwise
	Code       int64  // exchange error code when known
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error (status=%d code=%d): %s", e.StatusCode, e.Code, e.Message)
}
