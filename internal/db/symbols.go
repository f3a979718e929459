package db

import (
	"context"
	"fmt"
	"time"
)

// UpsertSymbol creates a symbol on first observation or refreshes its
// activity flag and last-seen time.
func (db *DB) UpsertSymbol(ctx context.Context, q Executor, sym Symbol) error {
	query := `
		INSERT INTO symbols (symbol, base_asset, quote_asset, active, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE
		SET active = EXCLUDED.active, last_seen_at = EXCLUDED.last_seen_at
	`

	if sym.LastSeenAt.IsZero() {
		sym.LastSeenAt = time.Now()
	}

	_, err := q.Exec(ctx, query,
		sym.Symbol, sym.BaseAsset, sym.QuoteAsset, sym.Active, sym.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol %s: %w", sym.Symbol, err)
	}
	return nil
}

// ListSymbols returns all known symbols
func (db *DB) ListSymbols(ctx context.Context) ([]Symbol, error) {
	query := `
		SELECT symbol, base_asset, quote_asset, active, last_seen_at
		FROM symbols
		ORDER BY symbol
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.Symbol, &s.BaseAsset, &s.QuoteAsset, &s.Active, &s.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
