package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, coins, created_at)
		 VALUES ($1, $2::NUMERIC, $3)`,
		u.ID, u.Coins.String(), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var coins string

	err := s.pool.QueryRow(ctx,
		`SELECT id, coins::TEXT, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &coins, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Coins, _ = decimal.NewFromString(coins)
	return &u, nil
}

func (s *PostgresStore) UpdateUserCoins(ctx context.Context, id string, coins decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET coins = $2::NUMERIC WHERE id = $1`,
		id, coins.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, symbol, name, current_price, image_url, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6)`,
		a.ID, a.Symbol, a.Name, a.CurrentPrice.String(), a.ImageURL, a.CreatedAt,
	)
	// 23505 is unique_violation: id or symbol already taken.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	var price string

	err := s.pool.QueryRow(ctx,
		`SELECT id, symbol, name, current_price::TEXT, COALESCE(image_url, ''), created_at
		 FROM assets WHERE id = $1`, id).
		Scan(&a.ID, &a.Symbol, &a.Name, &price, &a.ImageURL, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}

	a.CurrentPrice, _ = decimal.NewFromString(price)
	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, name, current_price::TEXT, COALESCE(image_url, ''), created_at
		 FROM assets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var price string
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &price, &a.ImageURL, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CurrentPrice, _ = decimal.NewFromString(price)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET current_price = $2::NUMERIC WHERE id = $1`,
		id, price.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, asset_id, quantity, price_at_transaction, total, type, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8)`,
		t.ID, t.UserID, t.AssetID, t.Quantity,
		t.PriceAtTransaction.String(), t.Total.String(),
		t.Type, t.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, asset_id, quantity, price_at_transaction::TEXT, total::TEXT, type, created_at
		 FROM transactions WHERE user_id = $1 AND asset_id = $2 ORDER BY created_at`,
		userID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, asset_id, quantity, price_at_transaction::TEXT, total::TEXT, type, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetNetVolume reads the v_asset_volume view: SUM of buy quantities minus
// SUM of sell quantities across all users.
func (s *PostgresStore) GetNetVolume(ctx context.Context, assetID string) (decimal.Decimal, error) {
	var net string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(net_volume, 0)::TEXT FROM v_asset_volume WHERE asset_id = $1`,
		assetID).Scan(&net)
	if errors.Is(err, pgx.ErrNoRows) {
		// No trades yet for this asset.
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get net volume %s: %w", assetID, err)
	}

	vol, _ := decimal.NewFromString(net)
	return vol, nil
}

func (s *PostgresStore) InsertPricePoint(ctx context.Context, p *model.PricePoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_prices (asset_id, price, recorded_at)
		 VALUES ($1, $2::NUMERIC, $3)`,
		p.AssetID, p.Price.String(), p.RecordedAt,
	)
	return err
}

func (s *PostgresStore) GetPriceHistory(ctx context.Context, assetID string) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, price::TEXT, recorded_at
		 FROM asset_prices WHERE asset_id = $1 ORDER BY recorded_at`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var price string
		if err := rows.Scan(&p.AssetID, &price, &p.RecordedAt); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(price)
		points = append(points, p)
	}
	return points, rows.Err()
}

// scanTransactions reads pgx rows into Transaction slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTransactions(rows pgxRows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var priceS, totalS string

		if err := rows.Scan(&t.ID, &t.UserID, &t.AssetID, &t.Quantity,
			&priceS, &totalS, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}

		t.PriceAtTransaction, _ = decimal.NewFromString(priceS)
		t.Total, _ = decimal.NewFromString(totalS)

		txs = append(txs, t)
	}
	return txs, rows.Err()
}
