// Package holdings derives positions from the immutable transaction log.
//
// Holdings are deliberately not stored as a mutable field. They are
// recomputed as a pure fold over transaction records, so they can never
// drift from the log that defines them.
package holdings

import (
	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

// FromTransactions returns the quantity held after replaying a
// transaction log: sum of buy quantities minus sum of sell quantities.
// Order of the records does not matter. An empty or nil log yields 0.
func FromTransactions(txs []model.Transaction) int64 {
	var held int64
	for _, tx := range txs {
		switch tx.Type {
		case model.TradeBuy:
			held += tx.Quantity
		case model.TradeSell:
			held -= tx.Quantity
		}
	}
	return held
}

// PositionAgg is the per-asset aggregate used for portfolio views.
type PositionAgg struct {
	AssetID  string
	Quantity int64
	Invested decimal.Decimal // net cash outflow at transaction prices
}

// GroupByAsset folds a user's full transaction log into per-asset
// aggregates. Assets whose derived quantity is zero or negative are
// dropped — a fully sold position does not appear in the portfolio.
func GroupByAsset(txs []model.Transaction) []PositionAgg {
	byAsset := make(map[string]*PositionAgg)
	var order []string

	for _, tx := range txs {
		agg, ok := byAsset[tx.AssetID]
		if !ok {
			agg = &PositionAgg{AssetID: tx.AssetID}
			byAsset[tx.AssetID] = agg
			order = append(order, tx.AssetID)
		}
		amount := tx.PriceAtTransaction.Mul(decimal.NewFromInt(tx.Quantity))
		switch tx.Type {
		case model.TradeBuy:
			agg.Quantity += tx.Quantity
			agg.Invested = agg.Invested.Add(amount)
		case model.TradeSell:
			agg.Quantity -= tx.Quantity
			agg.Invested = agg.Invested.Sub(amount)
		}
	}

	var result []PositionAgg
	for _, id := range order {
		if agg := byAsset[id]; agg.Quantity > 0 {
			result = append(result, *agg)
		}
	}
	return result
}
