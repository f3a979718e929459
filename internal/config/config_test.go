package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "AlphaBoard", cfg.App.Name)
	assert.Equal(t, "json", cfg.App.LogFormat)
	assert.Equal(t, 0.001, cfg.Trading.FeeRate)
	assert.Equal(t, 0.25, cfg.Trading.MaxPositionSize)
	assert.Equal(t, 5, cfg.Trading.MaxPositions)
	assert.Equal(t, 250, cfg.Pipeline.CandleLimit)
	assert.Equal(t, 15, cfg.Pipeline.Cadences["1h"])
	assert.Equal(t, 1440, cfg.Pipeline.Cadences["1w"])
	assert.Equal(t, 30*time.Second, cfg.Exchange.GetRequestTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.Exchange.GetSpacing())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Trading.FeeRate = 1.5
	assert.ErrorContains(t, cfg.Validate(), "fee_rate")

	cfg = base()
	cfg.Trading.MaxPositionSize = 0
	assert.ErrorContains(t, cfg.Validate(), "max_position_size")

	cfg = base()
	cfg.Trading.MaxPositions = 0
	assert.ErrorContains(t, cfg.Validate(), "max_positions")

	cfg = base()
	cfg.Pipeline.CandleLimit = 10
	assert.ErrorContains(t, cfg.Validate(), "candle_limit")

	cfg = base()
	cfg.Pipeline.Cadences["1h"] = 0
	assert.ErrorContains(t, cfg.Validate(), "cadences")
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Database: "alphaboard", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=alphaboard sslmode=disable",
		db.GetDSN())
}

func TestGetRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", r.GetRedisAddr())
}

func TestMaxPositionsFor(t *testing.T) {
	trading := TradingConfig{
		MaxPositions:  5,
		ArchetypeCaps: map[string]int{"swing": 3, "breakout": 2},
	}

	assert.Equal(t, 3, trading.MaxPositionsFor("swing"))
	assert.Equal(t, 2, trading.MaxPositionsFor("breakout"))
	assert.Equal(t, 5, trading.MaxPositionsFor("momentum"))
}
