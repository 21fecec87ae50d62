// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade directions. Stored verbatim in the transactions table.
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)

// User holds a coin balance. The balance is mutated only by trade
// settlement, as the net effect of buys and sells.
type User struct {
	ID        string          `json:"id" db:"id"`
	Coins     decimal.Decimal `json:"coins" db:"coins"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Asset is a tradable instrument. CurrentPrice is mutated exclusively by
// the price formation engine's output, once per settled trade, and is
// always positive.
type Asset struct {
	ID           string          `json:"id" db:"id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Name         string          `json:"name" db:"name"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	ImageURL     string          `json:"image_url,omitempty" db:"image_url"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is an immutable record of a settled trade. Once created,
// these are never modified or deleted; the transaction log is the sole
// source of truth for a user's holdings.
//
// PriceAtTransaction is the asset price at the moment of execution,
// before the post-trade reprice. The trade settles at this price.
type Transaction struct {
	ID                 string          `json:"id" db:"id"`
	UserID             string          `json:"user_id" db:"user_id"`
	AssetID            string          `json:"asset_id" db:"asset_id"`
	Quantity           int64           `json:"quantity" db:"quantity"`
	PriceAtTransaction decimal.Decimal `json:"price_at_transaction" db:"price_at_transaction"`
	Total              decimal.Decimal `json:"total" db:"total"`
	Type               string          `json:"type" db:"type"` // "buy" or "sell"
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// PricePoint is an append-only price history entry, one per settled
// trade, recording the price after formation.
type PricePoint struct {
	AssetID    string          `json:"asset_id" db:"asset_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

// Holding is a user's derived position in one asset, recomputed from the
// transaction log rather than stored.
type Holding struct {
	AssetID      string          `json:"asset_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	Invested     decimal.Decimal `json:"invested"`      // net cash outflow at transaction prices
	CurrentValue decimal.Decimal `json:"current_value"` // quantity × current price
	Profit       decimal.Decimal `json:"profit"`        // currentValue − invested
}

// Portfolio aggregates a user's balance and derived holdings.
type Portfolio struct {
	UserID   string          `json:"user_id"`
	Coins    decimal.Decimal `json:"coins"`
	Holdings []Holding       `json:"holdings"`
}
