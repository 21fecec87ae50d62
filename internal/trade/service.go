// Package trade provides the HTTP handlers and settlement logic for
// buying and selling assets, querying prices, and deriving portfolios.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/auth"
	"github.com/laughstock/market-engine/internal/holdings"
	"github.com/laughstock/market-engine/internal/limits"
	"github.com/laughstock/market-engine/internal/metrics"
	"github.com/laughstock/market-engine/internal/model"
	"github.com/laughstock/market-engine/internal/pricing"
	"github.com/laughstock/market-engine/internal/store"
	"github.com/laughstock/market-engine/internal/symbol"
)

// Settlement validation errors, mapped to HTTP statuses by the handlers.
var (
	// ErrInvalidQuantity is returned when the requested quantity is not a
	// positive integer.
	ErrInvalidQuantity = errors.New("trade: quantity must be a positive integer")

	// ErrUserNotFound is returned when the authenticated user has no
	// ledger record.
	ErrUserNotFound = errors.New("trade: user not found")

	// ErrAssetNotFound is returned when the requested asset does not exist.
	ErrAssetNotFound = errors.New("trade: asset not found")

	// ErrInsufficientFunds is returned when a buy exceeds the user's balance.
	ErrInsufficientFunds = errors.New("trade: insufficient coins")

	// ErrInsufficientHoldings is returned when a sell exceeds the user's
	// derived holdings.
	ErrInsufficientHoldings = errors.New("trade: not enough quantity to sell")
)

// Service handles market operations. Uses a mutex for serialized trade
// settlement (single-instance): concurrent trades against the same asset
// or user apply in some sequential order, never from stale snapshots.
// For horizontal scaling, replace with distributed locking or
// database-level optimistic concurrency.
type Service struct {
	store         store.Store
	engine        *pricing.Engine
	limiter       *limits.TradeLimiter
	startingCoins decimal.Decimal
	mu            sync.Mutex
	wsHub         *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, engine *pricing.Engine, limiter *limits.TradeLimiter, hub *WSHub) *Service {
	return &Service{
		store:         st,
		engine:        engine,
		limiter:       limiter,
		startingCoins: decimal.NewFromInt(1000), // default starting balance
		wsHub:         hub,
	}
}

// SetStartingCoins overrides the balance granted to newly registered
// users.
func (s *Service) SetStartingCoins(coins decimal.Decimal) {
	if coins.IsPositive() {
		s.startingCoins = coins
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /buy and POST /sell.
type TradeRequest struct {
	AssetID  string `json:"asset_id"`
	Quantity int64  `json:"quantity"`
}

// TradeResponse is the JSON body returned from a settled trade.
type TradeResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // price the trade settled at
	Total    decimal.Decimal `json:"total"`
}

// CreateAssetRequest is the JSON body for asset creation.
type CreateAssetRequest struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	InitialPrice decimal.Decimal `json:"initial_price"` // 0 → default 100
	ImageURL     string          `json:"image_url"`
}

// --- Settlement pipeline ---

// tradeOutcome carries the results of a settled trade back to the handler.
type tradeOutcome struct {
	tx       *model.Transaction
	asset    *model.Asset
	newPrice decimal.Decimal
}

// settle runs the full settlement pipeline for one trade: validate,
// record the immutable transaction, apply the balance delta, reprice
// from net volume, and append price history.
//
// The trade is logged and settled at the pre-reprice price; the history
// entry records the post-reprice price. A failed net-volume read
// degrades to zero; a failed history append is logged and swallowed.
// Any other failure aborts the request at the point of first error.
func (s *Service) settle(ctx context.Context, userID, assetID string, quantity int64, direction string) (*tradeOutcome, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// Serialize settlement: price and balance reads below must not
	// interleave with another trade's writes.
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	asset, err := s.store.GetAsset(ctx, assetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}

	total := asset.CurrentPrice.Mul(decimal.NewFromInt(quantity))

	// Holdings are derived from the transaction log, never stored.
	txs, err := s.store.GetTransactionsByUserAsset(ctx, userID, assetID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	held := holdings.FromTransactions(txs)

	switch direction {
	case model.TradeBuy:
		if user.Coins.LessThan(total) {
			return nil, ErrInsufficientFunds
		}
		if err := s.limiter.CheckBuy(held, quantity); err != nil {
			return nil, err
		}
	case model.TradeSell:
		if held < quantity {
			return nil, ErrInsufficientHoldings
		}
		if err := s.limiter.CheckSell(quantity); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("trade: unknown direction %q", direction)
	}

	now := time.Now().UTC()

	// Recording: the transaction captures the pre-reprice price. This is
	// the trade's contractual price.
	tx := &model.Transaction{
		ID:                 uuid.New().String(),
		UserID:             userID,
		AssetID:            assetID,
		Quantity:           quantity,
		PriceAtTransaction: asset.CurrentPrice,
		Total:              total,
		Type:               direction,
		CreatedAt:          now,
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}

	// Settling: balance moves by the same pre-reprice total.
	newCoins := user.Coins.Sub(total)
	if direction == model.TradeSell {
		newCoins = user.Coins.Add(total)
	}
	if err := s.store.UpdateUserCoins(ctx, userID, newCoins); err != nil {
		// The trade record is already durable; this leaves an orphaned
		// transaction with no matching balance effect. Surface loudly —
		// the caller sees a 500 and the trade must be reconciled.
		slog.Error("balance update failed after trade was recorded",
			"trade_id", tx.ID, "user", userID, "err", err)
		return nil, fmt.Errorf("settle balance: %w", err)
	}

	// Repricing: net volume is a derived aggregate; a failed read
	// degrades to zero rather than failing the settled trade.
	netBefore, err := s.store.GetNetVolume(ctx, assetID)
	if err != nil {
		slog.Warn("net volume read failed, defaulting to zero",
			"asset", assetID, "err", err)
		metrics.NetVolumeReadFailures.Inc()
		netBefore = decimal.Zero
	}
	netAfter := pricing.NetVolumeAfter(netBefore, quantity, direction)
	newPrice := s.engine.NextPrice(asset.CurrentPrice, netBefore, netAfter)

	if err := s.store.UpdateAssetPrice(ctx, assetID, newPrice); err != nil {
		// Cannot be dropped silently: the asset would stay mispriced
		// relative to the log.
		return nil, fmt.Errorf("update price: %w", err)
	}

	// HistoryAppend: best-effort audit trail of the post-reprice price.
	point := &model.PricePoint{AssetID: assetID, Price: newPrice, RecordedAt: now}
	if err := s.store.InsertPricePoint(ctx, point); err != nil {
		slog.Error("price history append failed",
			"asset", assetID, "price", newPrice.String(), "err", err)
		metrics.PriceHistoryAppendFailures.Inc()
	}

	return &tradeOutcome{tx: tx, asset: asset, newPrice: newPrice}, nil
}

// --- HTTP Handlers ---

// Buy handles POST /api/v1/buy.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TradeBuy, "purchase complete")
}

// Sell handles POST /api/v1/sell.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TradeSell, "sale complete")
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request, direction, successMessage string) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, "missing token", http.StatusUnauthorized)
		return
	}

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AssetID == "" {
		writeError(w, "asset_id is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	outcome, err := s.settle(r.Context(), userID, req.AssetID, req.Quantity, direction)
	if err != nil {
		s.writeSettlementError(w, direction, err)
		return
	}

	metrics.TradesTotal.WithLabelValues(direction).Inc()
	metrics.TradeVolume.WithLabelValues(req.AssetID, direction).Add(float64(req.Quantity))
	metrics.SettlementLatency.WithLabelValues(direction).Observe(time.Since(start).Seconds())

	slog.Info("trade settled",
		"trade_id", outcome.tx.ID,
		"user", userID,
		"asset", req.AssetID,
		"type", direction,
		"qty", req.Quantity,
		"price", outcome.tx.PriceAtTransaction.String(),
		"total", outcome.tx.Total.String(),
		"new_price", outcome.newPrice.String(),
	)

	// Broadcast price update via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "price_update",
			AssetID:   req.AssetID,
			Symbol:    outcome.asset.Symbol,
			Price:     outcome.newPrice.String(),
			TradeType: direction,
			Quantity:  req.Quantity,
		})
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		Success:  true,
		Message:  successMessage,
		Quantity: outcome.tx.Quantity,
		Price:    outcome.tx.PriceAtTransaction,
		Total:    outcome.tx.Total,
	})
}

// writeSettlementError maps settlement errors to HTTP statuses.
// Validation and not-found errors carry their own short messages;
// anything else is a persistence failure reported as a bare 500.
func (s *Service) writeSettlementError(w http.ResponseWriter, direction string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		metrics.TradesRejected.WithLabelValues("invalid_quantity").Inc()
		writeError(w, "quantity must be a positive integer", http.StatusBadRequest)
	case errors.Is(err, ErrUserNotFound):
		metrics.TradesRejected.WithLabelValues("user_not_found").Inc()
		writeError(w, "user not found", http.StatusNotFound)
	case errors.Is(err, ErrAssetNotFound):
		metrics.TradesRejected.WithLabelValues("asset_not_found").Inc()
		writeError(w, "asset not found", http.StatusNotFound)
	case errors.Is(err, ErrInsufficientFunds):
		metrics.TradesRejected.WithLabelValues("insufficient_funds").Inc()
		writeError(w, "insufficient coins", http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientHoldings):
		metrics.TradesRejected.WithLabelValues("insufficient_holdings").Inc()
		writeError(w, "not enough quantity to sell", http.StatusBadRequest)
	case errors.Is(err, limits.ErrTradeTooLarge):
		metrics.TradesRejected.WithLabelValues("trade_too_large").Inc()
		writeError(w, "trade quantity exceeds the per-trade maximum", http.StatusBadRequest)
	case errors.Is(err, limits.ErrHoldingsLimitExceeded):
		metrics.TradesRejected.WithLabelValues("holdings_limit").Inc()
		writeError(w, "per-asset holdings limit exceeded", http.StatusBadRequest)
	default:
		slog.Error("settlement failed", "type", direction, "err", err)
		writeError(w, "internal settlement error", http.StatusInternalServerError)
	}
}

// Register handles POST /api/v1/register. Creates a ledger record with
// the starting balance for the verified caller if one does not exist.
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, "missing token", http.StatusUnauthorized)
		return
	}
	ctx := r.Context()

	if user, err := s.store.GetUser(ctx, userID); err == nil {
		writeJSON(w, http.StatusOK, user)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		ID:        userID,
		Coins:     s.startingCoins,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		writeError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "user", userID, "coins", user.Coins.String())
	writeJSON(w, http.StatusCreated, user)
}

// CreateAsset handles POST /api/v1/assets.
func (s *Service) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	price := req.InitialPrice
	if price.LessThanOrEqual(decimal.Zero) {
		price = decimal.NewFromInt(100) // default listing price
	}
	name := req.Name
	if name == "" {
		name = sym
	}

	asset := &model.Asset{
		ID:           uuid.New().String(),
		Symbol:       sym,
		Name:         name,
		CurrentPrice: price,
		ImageURL:     req.ImageURL,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAsset(r.Context(), asset); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeError(w, "symbol already listed", http.StatusConflict)
			return
		}
		writeError(w, "failed to create asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset listed", "id", asset.ID, "symbol", sym, "price", price.String())
	writeJSON(w, http.StatusCreated, asset)
}

// ListAssets handles GET /api/v1/assets.
func (s *Service) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context())
	if err != nil {
		writeError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// GetAsset handles GET /api/v1/assets/{assetID}.
func (s *Service) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.store.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// GetAssetPrice handles GET /api/v1/assets/{assetID}/price.
func (s *Service) GetAssetPrice(w http.ResponseWriter, r *http.Request) {
	asset, err := s.store.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"price": asset.CurrentPrice})
}

// GetAssetHistory handles GET /api/v1/assets/{assetID}/history.
// Returns price points appended by settled trades, oldest first.
func (s *Service) GetAssetHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.GetPriceHistory(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, "failed to load price history", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []model.PricePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// GetPortfolio handles GET /api/v1/portfolio. Holdings are derived from
// the caller's transaction log and valued at current prices.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, "missing token", http.StatusUnauthorized)
		return
	}
	ctx := r.Context()

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	txs, err := s.store.GetTransactionsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	portfolio := model.Portfolio{
		UserID:   userID,
		Coins:    user.Coins,
		Holdings: []model.Holding{},
	}

	for _, agg := range holdings.GroupByAsset(txs) {
		h := model.Holding{
			AssetID:  agg.AssetID,
			Quantity: agg.Quantity,
			Invested: agg.Invested,
		}
		if asset, err := s.store.GetAsset(ctx, agg.AssetID); err == nil {
			h.Symbol = asset.Symbol
			h.Name = asset.Name
			h.CurrentValue = asset.CurrentPrice.Mul(decimal.NewFromInt(agg.Quantity))
			h.Profit = h.CurrentValue.Sub(agg.Invested)
		}
		portfolio.Holdings = append(portfolio.Holdings, h)
	}

	writeJSON(w, http.StatusOK, portfolio)
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
