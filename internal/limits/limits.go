// Package limits enforces trade-size and position caps.
//
// The stepped price formation rule moves the price by one percentage
// notch per whole step of volume change, so a single oversized trade can
// walk the price through many steps at once. Capping the per-trade
// quantity bounds that movement; capping per-asset holdings bounds how
// much of one asset a single user can accumulate.
package limits

import "errors"

var (
	// ErrTradeTooLarge is returned when a single trade exceeds the
	// per-trade quantity cap.
	ErrTradeTooLarge = errors.New("limits: trade quantity exceeds per-trade maximum")

	// ErrHoldingsLimitExceeded is returned when a buy would push a user's
	// derived holdings in one asset beyond the per-asset maximum.
	ErrHoldingsLimitExceeded = errors.New("limits: per-asset holdings limit exceeded")
)

// TradeLimiter validates trade sizes before settlement.
type TradeLimiter struct {
	// MaxTradeQuantity is the largest quantity a single trade may carry.
	MaxTradeQuantity int64

	// MaxHoldingsPerAsset is the largest derived position one user may
	// hold in a single asset.
	MaxHoldingsPerAsset int64
}

// NewTradeLimiter creates a limiter with the given caps. Non-positive
// caps disable the corresponding check.
func NewTradeLimiter(maxTradeQuantity, maxHoldingsPerAsset int64) *TradeLimiter {
	return &TradeLimiter{
		MaxTradeQuantity:    maxTradeQuantity,
		MaxHoldingsPerAsset: maxHoldingsPerAsset,
	}
}

// CheckBuy validates a buy of `quantity` units given the user's current
// derived holdings of the asset.
func (l *TradeLimiter) CheckBuy(held, quantity int64) error {
	if l.MaxTradeQuantity > 0 && quantity > l.MaxTradeQuantity {
		return ErrTradeTooLarge
	}
	if l.MaxHoldingsPerAsset > 0 && held+quantity > l.MaxHoldingsPerAsset {
		return ErrHoldingsLimitExceeded
	}
	return nil
}

// CheckSell validates a sell of `quantity` units. Sells reduce holdings,
// so only the per-trade cap applies.
func (l *TradeLimiter) CheckSell(quantity int64) error {
	if l.MaxTradeQuantity > 0 && quantity > l.MaxTradeQuantity {
		return ErrTradeTooLarge
	}
	return nil
}
