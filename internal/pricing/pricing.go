// Package pricing implements stepped net-volume price formation for
// market assets.
//
// The price reacts to changes in an asset's net volume (cumulative buys
// minus cumulative sells). Volume change is quantized into discrete
// steps; each whole step moves the price by a fixed percentage. A trade
// smaller than one step leaves the price untouched until accumulated
// pressure crosses a step boundary.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Computation keeps full decimal precision; rounding to display scale is
// the caller's concern.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

var (
	// ErrInvalidStepSize is returned when stepSize < 1.
	ErrInvalidStepSize = errors.New("pricing: step size must be at least 1")

	// ErrInvalidChangePerStep is returned when changePerStep is not in (0, 1).
	ErrInvalidChangePerStep = errors.New("pricing: change per step must be in (0, 1)")
)

// Defaults used when no explicit configuration is supplied.
var (
	// DefaultStepSize is the net-volume change required for one price step.
	DefaultStepSize int64 = 5

	// DefaultChangePerStep is the fractional price change per step (0.5%).
	DefaultChangePerStep = decimal.NewFromFloat(0.005)

	// DefaultMinPrice is the price floor. The stepped-percentage rule is
	// not naturally bounded below: a large one-trade volume drop multiplies
	// by (1 − changePerStep × steps), which goes negative once steps exceed
	// 1/changePerStep. Clamping keeps the price > 0 invariant.
	DefaultMinPrice = decimal.NewFromFloat(0.01)
)

// Engine computes post-trade prices. It is stateless — current price and
// volume figures are passed as arguments, not stored — so it is safe to
// share across requests.
type Engine struct {
	stepSize      decimal.Decimal
	changePerStep decimal.Decimal
	minPrice      decimal.Decimal
}

// NewEngine creates a price formation engine. stepSize is the net-volume
// change per price step; changePerStep is the fractional adjustment per
// step; minPrice is the floor the result is clamped to.
func NewEngine(stepSize int64, changePerStep, minPrice decimal.Decimal) (*Engine, error) {
	if stepSize < 1 {
		return nil, ErrInvalidStepSize
	}
	if changePerStep.LessThanOrEqual(decimal.Zero) || changePerStep.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidChangePerStep
	}
	return &Engine{
		stepSize:      decimal.NewFromInt(stepSize),
		changePerStep: changePerStep,
		minPrice:      minPrice,
	}, nil
}

// NewDefaultEngine creates an engine with the package defaults.
func NewDefaultEngine() *Engine {
	e, _ := NewEngine(DefaultStepSize, DefaultChangePerStep, DefaultMinPrice)
	return e
}

// MinPrice returns the configured price floor.
func (e *Engine) MinPrice() decimal.Decimal {
	return e.minPrice
}

// NetVolumeAfter applies a trade to a net-volume figure: buys increase
// net volume (more demand), sells decrease it (more supply). An
// unrecognized direction leaves the figure unchanged, which leaves the
// price unchanged downstream.
func NetVolumeAfter(netBefore decimal.Decimal, quantity int64, direction string) decimal.Decimal {
	q := decimal.NewFromInt(quantity)
	switch direction {
	case model.TradeBuy:
		return netBefore.Add(q)
	case model.TradeSell:
		return netBefore.Sub(q)
	}
	return netBefore
}

// NextPrice computes the post-trade price from the current price and the
// net volume before and after the trade.
//
//	delta = netAfter − netBefore
//	steps = floor(|delta| / stepSize)
//	delta > 0 → current × (1 + changePerStep × steps)
//	delta < 0 → current × (1 − changePerStep × steps)
//	delta = 0 → current
//
// The engine reacts to the sign of the volume change, not the trade
// type: a sell executed while external volume figures moved up still
// raises the price. The result is clamped to the configured floor.
func (e *Engine) NextPrice(current, netBefore, netAfter decimal.Decimal) decimal.Decimal {
	delta := netAfter.Sub(netBefore)
	if delta.IsZero() {
		return current
	}

	steps := delta.Abs().Div(e.stepSize).Floor()
	if steps.IsZero() {
		return current
	}

	one := decimal.NewFromInt(1)
	adjustment := e.changePerStep.Mul(steps)

	var next decimal.Decimal
	if delta.IsPositive() {
		next = current.Mul(one.Add(adjustment))
	} else {
		next = current.Mul(one.Sub(adjustment))
	}

	if next.LessThan(e.minPrice) {
		return e.minPrice
	}
	return next
}
