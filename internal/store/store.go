// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

// ErrNotFound is returned when a user or asset does not exist. Callers
// map it to a 404; any other store error is a persistence failure.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned when a create collides with an existing
// record, such as an asset listed under a taken symbol.
var ErrAlreadyExists = errors.New("store: already exists")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- User operations ---

	// CreateUser persists a new user with a starting balance.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user by id. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// UpdateUserCoins sets a user's balance after settlement.
	UpdateUserCoins(ctx context.Context, id string, coins decimal.Decimal) error

	// --- Asset operations ---

	// CreateAsset persists a new asset. Returns ErrAlreadyExists if the
	// id or symbol is already taken.
	CreateAsset(ctx context.Context, asset *model.Asset) error

	// GetAsset retrieves an asset by id. Returns ErrNotFound if absent.
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	// ListAssets returns all assets.
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// UpdateAssetPrice persists the post-trade price.
	UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal) error

	// --- Immutable transaction log ---

	// InsertTransaction appends an immutable trade record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// GetTransactionsByUserAsset returns all trades for a (user, asset) pair.
	GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error)

	// GetTransactionsByUser returns all trades for a user.
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// --- Derived aggregates ---

	// GetNetVolume returns cumulative buy quantity minus cumulative sell
	// quantity for an asset, across all users.
	GetNetVolume(ctx context.Context, assetID string) (decimal.Decimal, error)

	// --- Price history ---

	// InsertPricePoint appends a price-history entry.
	InsertPricePoint(ctx context.Context, point *model.PricePoint) error

	// GetPriceHistory returns an asset's price history, oldest first.
	GetPriceHistory(ctx context.Context, assetID string) ([]model.PricePoint, error)
}
