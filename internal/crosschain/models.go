package crosschain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the venue's trade direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// AssetQuote is a real-time bid/ask for a stock symbol. BUY trades price at
// the ask, SELL trades at the bid; the two sides are never interchangeable.
type AssetQuote struct {
	BidPrice    decimal.Decimal
	AskPrice    decimal.Decimal
	BidSize     decimal.Decimal
	AskSize     decimal.Decimal
	Timestamp   time.Time
	BidExchange string
	AskExchange string
}

// PriceForSide returns the side of the spread that prices the given
// direction.
func (q AssetQuote) PriceForSide(side OrderSide) decimal.Decimal {
	if side == OrderSideBuy {
		return q.AskPrice
	}
	return q.BidPrice
}

// AccountStatus carries the venue's eligibility flags.
type AccountStatus struct {
	AccountBlocked       bool
	TradingBlocked       bool
	TransfersBlocked     bool
	TradeSuspendedByUser bool
	MarketOpen           bool
	AccountStatus        string
}

// TradingAllowed reports whether every eligibility check passes.
func (s AccountStatus) TradingAllowed() bool {
	return !s.AccountBlocked &&
		!s.TradingBlocked &&
		!s.TransfersBlocked &&
		!s.TradeSuspendedByUser &&
		s.MarketOpen
}

// BlockReasons enumerates every failing flag so unavailability messages are
// actionable rather than generic.
func (s AccountStatus) BlockReasons() []string {
	var reasons []string
	if s.AccountBlocked {
		reasons = append(reasons, "account blocked")
	}
	if s.TradingBlocked {
		reasons = append(reasons, "trading blocked")
	}
	if s.TransfersBlocked {
		reasons = append(reasons, "transfers blocked")
	}
	if s.TradeSuspendedByUser {
		reasons = append(reasons, "trading suspended by user")
	}
	if !s.MarketOpen {
		reasons = append(reasons, "market closed")
	}
	return reasons
}

// AccountFunds is the venue's buying-power report.
type AccountFunds struct {
	Cash                  decimal.Decimal
	BuyingPower           decimal.Decimal
	DayTradingBuyingPower decimal.Decimal
	EffectiveBuyingPower  decimal.Decimal
	NonMarginBuyingPower  decimal.Decimal
	RegTBuyingPower       decimal.Decimal
}

// Covers reports whether buying power covers the required notional.
func (f AccountFunds) Covers(required decimal.Decimal) bool {
	return f.BuyingPower.GreaterThanOrEqual(required)
}

// OrderRequest is the phase-2 order submission, referencing the phase-1
// escrow transfer by its transaction hash.
type OrderRequest struct {
	Wallet        string
	TxHash        string
	AssetAddress  string
	AssetSymbol   string
	Side          OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Notional      decimal.Decimal
	ChainID       int64
	TargetChainID int64
	UserEmail     string
}

// OrderResponse is the venue's acknowledgement of a submitted order.
type OrderResponse struct {
	OrderID   string
	Symbol    string
	Side      string
	Quantity  decimal.Decimal
	FilledQty decimal.Decimal
	Status    string
	CreatedAt time.Time
}
