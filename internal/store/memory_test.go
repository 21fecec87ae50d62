package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for user, got %v", err)
	}
	if _, err := s.GetAsset(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for asset, got %v", err)
	}
	if err := s.UpdateUserCoins(ctx, "missing", decimal.Zero); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on coins update, got %v", err)
	}
	if err := s.UpdateAssetPrice(ctx, "missing", decimal.NewFromInt(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on price update, got %v", err)
	}
}

func TestMemoryStore_NetVolume(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	insert := func(userID, typ string, qty int64) {
		t.Helper()
		err := s.InsertTransaction(ctx, &model.Transaction{
			UserID:   userID,
			AssetID:  "asset1",
			Quantity: qty,
			Type:     typ,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	// Net volume spans all users.
	insert("alice", model.TradeBuy, 10)
	insert("bob", model.TradeBuy, 3)
	insert("alice", model.TradeSell, 4)

	vol, err := s.GetNetVolume(ctx, "asset1")
	if err != nil {
		t.Fatalf("get net volume: %v", err)
	}
	if !vol.Equal(decimal.NewFromInt(9)) {
		t.Errorf("expected net volume 9, got %s", vol)
	}

	// Untraded asset aggregates to zero.
	vol, err = s.GetNetVolume(ctx, "other")
	if err != nil {
		t.Fatalf("get net volume: %v", err)
	}
	if !vol.IsZero() {
		t.Errorf("expected zero net volume, got %s", vol)
	}
}

func TestMemoryStore_DuplicateAsset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.CreateAsset(ctx, &model.Asset{ID: "a1", Symbol: "RGRV", CurrentPrice: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same id.
	err = s.CreateAsset(ctx, &model.Asset{ID: "a1", Symbol: "JMUL", CurrentPrice: decimal.NewFromInt(100)})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate id, got %v", err)
	}

	// Same symbol under a fresh id.
	err = s.CreateAsset(ctx, &model.Asset{ID: "a2", Symbol: "RGRV", CurrentPrice: decimal.NewFromInt(100)})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate symbol, got %v", err)
	}

	assets, _ := s.ListAssets(ctx)
	if len(assets) != 1 {
		t.Errorf("rejected creates must not be stored, got %d assets", len(assets))
	}
}

func TestMemoryStore_CopiesOut(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.CreateAsset(ctx, &model.Asset{ID: "a1", Symbol: "RGRV", CurrentPrice: decimal.NewFromInt(100)})

	a, _ := s.GetAsset(ctx, "a1")
	a.CurrentPrice = decimal.NewFromInt(1)

	again, _ := s.GetAsset(ctx, "a1")
	if !again.CurrentPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("mutating a returned asset should not affect the store, got %s", again.CurrentPrice)
	}
}
