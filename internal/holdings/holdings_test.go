package holdings

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/laughstock/market-engine/internal/model"
)

func tx(typ string, qty int64, price float64) model.Transaction {
	return model.Transaction{
		UserID:             "user1",
		AssetID:            "asset1",
		Quantity:           qty,
		PriceAtTransaction: decimal.NewFromFloat(price),
		Type:               typ,
	}
}

func TestFromTransactions_EmptyLog(t *testing.T) {
	if got := FromTransactions(nil); got != 0 {
		t.Errorf("expected 0 for empty log, got %d", got)
	}
}

func TestFromTransactions_BuysMinusSells(t *testing.T) {
	// [buy 10, sell 3, buy 2] = 9
	txs := []model.Transaction{
		tx(model.TradeBuy, 10, 100),
		tx(model.TradeSell, 3, 102),
		tx(model.TradeBuy, 2, 101),
	}
	if got := FromTransactions(txs); got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
}

func TestFromTransactions_OrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		txs := make([]model.Transaction, n)
		for i := range txs {
			typ := model.TradeBuy
			if rapid.Bool().Draw(t, "isSell") {
				typ = model.TradeSell
			}
			txs[i] = tx(typ, rapid.Int64Range(1, 100).Draw(t, "qty"), 100)
		}

		want := FromTransactions(txs)

		perm := rapid.Permutation(txs).Draw(t, "perm")
		if got := FromTransactions(perm); got != want {
			t.Fatalf("replay order changed result: %d vs %d", got, want)
		}
	})
}

func TestGroupByAsset_Invested(t *testing.T) {
	txs := []model.Transaction{
		tx(model.TradeBuy, 5, 100),  // +500
		tx(model.TradeSell, 2, 110), // -220
	}

	aggs := GroupByAsset(txs)
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	if aggs[0].Quantity != 3 {
		t.Errorf("expected quantity 3, got %d", aggs[0].Quantity)
	}
	if !aggs[0].Invested.Equal(decimal.NewFromInt(280)) {
		t.Errorf("expected invested 280, got %s", aggs[0].Invested)
	}
}

func TestGroupByAsset_DropsClosedPositions(t *testing.T) {
	txs := []model.Transaction{
		tx(model.TradeBuy, 5, 100),
		tx(model.TradeSell, 5, 105),
	}
	if aggs := GroupByAsset(txs); len(aggs) != 0 {
		t.Errorf("fully sold position should not appear, got %d aggregates", len(aggs))
	}
}

func TestGroupByAsset_MultipleAssets(t *testing.T) {
	a := tx(model.TradeBuy, 4, 50)
	b := tx(model.TradeBuy, 7, 20)
	b.AssetID = "asset2"

	aggs := GroupByAsset([]model.Transaction{a, b})
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	if aggs[0].AssetID != "asset1" || aggs[1].AssetID != "asset2" {
		t.Errorf("expected first-seen ordering, got %s then %s", aggs[0].AssetID, aggs[1].AssetID)
	}
}
