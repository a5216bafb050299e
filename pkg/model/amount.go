package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmountSpec is returned when an AmountSpec does not carry exactly
// one side. It is raised before any network call is made.
var ErrInvalidAmountSpec = errors.New("provide either sell amount or buy amount, not both")

// AmountSpec is a one-sided amount: exactly one of Sell/Buy must be set.
// The missing side is computed from a quote's rate by Resolve.
type AmountSpec struct {
	Sell *decimal.Decimal
	Buy  *decimal.Decimal
}

// SellAmount builds a sell-exact spec ("spend this much").
func SellAmount(v decimal.Decimal) AmountSpec { return AmountSpec{Sell: &v} }

// BuyAmount builds a buy-exact spec ("acquire this much").
func BuyAmount(v decimal.Decimal) AmountSpec { return AmountSpec{Buy: &v} }

// Validate enforces the exactly-one invariant and positivity.
func (s AmountSpec) Validate() error {
	if (s.Sell == nil) == (s.Buy == nil) {
		return ErrInvalidAmountSpec
	}
	if s.Sell != nil && !s.Sell.IsPositive() {
		return errors.New("sell amount must be positive")
	}
	if s.Buy != nil && !s.Buy.IsPositive() {
		return errors.New("buy amount must be positive")
	}
	return nil
}

// IsBuy reports whether the caller fixed the sell side, i.e. is spending a
// known amount of the sell token to acquire the buy token.
func (s AmountSpec) IsBuy() bool { return s.Sell != nil }

// Resolve computes the missing side from a buy-per-sell rate. All arithmetic
// is arbitrary-precision decimal; the rate is not pre-rounded.
func (s AmountSpec) Resolve(rate decimal.Decimal) (sell, buy decimal.Decimal, err error) {
	if err := s.Validate(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.New("rate must be positive")
	}
	if s.Sell != nil {
		return *s.Sell, s.Sell.Mul(rate), nil
	}
	return s.Buy.Div(rate), *s.Buy, nil
}

// Target returns the single amount the caller specified.
func (s AmountSpec) Target() decimal.Decimal {
	if s.Sell != nil {
		return *s.Sell
	}
	if s.Buy != nil {
		return *s.Buy
	}
	return decimal.Zero
}
