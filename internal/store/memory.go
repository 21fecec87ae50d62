package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	assets       map[string]*model.Asset
	assetOrder   []string
	transactions []model.Transaction
	priceHistory []model.PricePoint
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*model.User),
		assets: make(map[string]*model.Asset),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) UpdateUserCoins(_ context.Context, id string, coins decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Coins = coins
	return nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[a.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range s.assets {
		if existing.Symbol == a.Symbol {
			return ErrAlreadyExists
		}
	}

	copy := *a
	s.assets[a.ID] = &copy
	s.assetOrder = append(s.assetOrder, a.ID)
	return nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]model.Asset, 0, len(s.assetOrder))
	for _, id := range s.assetOrder {
		assets = append(assets, *s.assets[id])
	}
	return assets, nil
}

func (s *MemoryStore) UpdateAssetPrice(_ context.Context, id string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return ErrNotFound
	}
	a.CurrentPrice = price
	return nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *MemoryStore) GetTransactionsByUserAsset(_ context.Context, userID, assetID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.AssetID == assetID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			result = append(result, tx)
		}
	}
	return result, nil
}

// GetNetVolume aggregates buys minus sells across all users for one
// asset, mirroring the SQL view the Postgres store reads.
func (s *MemoryStore) GetNetVolume(_ context.Context, assetID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var net int64
	for _, tx := range s.transactions {
		if tx.AssetID != assetID {
			continue
		}
		switch tx.Type {
		case model.TradeBuy:
			net += tx.Quantity
		case model.TradeSell:
			net -= tx.Quantity
		}
	}
	return decimal.NewFromInt(net), nil
}

func (s *MemoryStore) InsertPricePoint(_ context.Context, p *model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.priceHistory = append(s.priceHistory, *p)
	return nil
}

func (s *MemoryStore) GetPriceHistory(_ context.Context, assetID string) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PricePoint
	for _, p := range s.priceHistory {
		if p.AssetID == assetID {
			result = append(result, p)
		}
	}
	return result, nil
}

// TransactionCount reports the total size of the transaction log. Test
// helper for append-only assertions.
func (s *MemoryStore) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}
