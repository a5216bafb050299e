package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Network identifies a supported blockchain by its chain ID.
type Network int64

const (
	NetworkEthereum Network = 1
	NetworkBSC      Network = 56
	NetworkPolygon  Network = 137
	NetworkBase     Network = 8453
)

// String returns the lowercase network name used by venue APIs.
func (n Network) String() string {
	switch n {
	case NetworkEthereum:
		return "ethereum"
	case NetworkBSC:
		return "bsc"
	case NetworkPolygon:
		return "polygon"
	case NetworkBase:
		return "base"
	default:
		return fmt.Sprintf("chain-%d", int64(n))
	}
}

// ChainID returns the numeric chain identifier.
func (n Network) ChainID() int64 { return int64(n) }

// Source is the closed set of execution venues. Routing and orchestration
// switch exhaustively over these two cases so a third venue cannot be
// silently mishandled by a default branch.
type Source string

const (
	SourceMarketMaker      Source = "market_maker"
	SourceCrossChainAccess Source = "cross_chain_access"
)

// Other returns the alternate venue, used when picking a fallback target.
func (s Source) Other() Source {
	if s == SourceMarketMaker {
		return SourceCrossChainAccess
	}
	return SourceMarketMaker
}

func (s Source) String() string { return string(s) }

// Quote is the canonical, venue-neutral quote. All amounts are normalized
// decimal units (1.5 means 1.5 USDC, never base units). Rate is always
// buy-per-sell regardless of trade direction. Quotes are constructed fresh
// per request and never mutated or cached across calls.
type Quote struct {
	SellToken  string          `json:"sell_token"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	BuyToken   string          `json:"buy_token"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
	Rate       decimal.Decimal `json:"rate"`
	Source     Source          `json:"source"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewQuote builds a Quote and derives the rate from the two amounts.
func NewQuote(source Source, sellToken string, sellAmount decimal.Decimal, buyToken string, buyAmount decimal.Decimal, at time.Time) Quote {
	rate := decimal.Zero
	if sellAmount.IsPositive() {
		rate = buyAmount.Div(sellAmount)
	}
	return Quote{
		SellToken:  sellToken,
		SellAmount: sellAmount,
		BuyToken:   buyToken,
		BuyAmount:  buyAmount,
		Rate:       rate,
		Source:     source,
		Timestamp:  at,
	}
}

// InverseRate returns sell-per-buy, useful for display in the opposite direction.
func (q Quote) InverseRate() decimal.Decimal {
	if q.BuyAmount.IsZero() {
		return decimal.Zero
	}
	return q.SellAmount.Div(q.BuyAmount)
}

func (q Quote) String() string {
	return fmt.Sprintf("Quote(%s): sell %s -> buy %s (rate %s)",
		q.Source, q.SellAmount, q.BuyAmount, q.Rate)
}

// TradeResult captures the outcome of a settled trade. Sell/buy amounts and
// rate are mutually consistent within rounding tolerance. Created exactly
// once per successful trade and never mutated.
type TradeResult struct {
	TxHash     string          `json:"tx_hash"`
	OrderID    string          `json:"order_id"`
	SellToken  string          `json:"sell_token"`
	SellAmount decimal.Decimal `json:"sell_amount"`
	BuyToken   string          `json:"buy_token"`
	BuyAmount  decimal.Decimal `json:"buy_amount"`
	Rate       decimal.Decimal `json:"rate"`
	Source     Source          `json:"source"`
	Timestamp  time.Time       `json:"timestamp"`
	Network    Network         `json:"network"`
}

func (r TradeResult) String() string {
	return fmt.Sprintf("Trade(%s): sold %s for %s on %s (tx %s)",
		r.Source, r.SellAmount, r.BuyAmount, r.Network, r.TxHash)
}

// TradeRequest is the caller-supplied input for quoting and trading.
// SellToken/BuyToken are contract addresses; Symbol is the venue ticker for
// the stock-market bridge (e.g. "AAPL") and may be empty when the caller
// only wants the on-chain offer book considered.
type TradeRequest struct {
	SellToken string
	BuyToken  string
	Symbol    string
	Amount    AmountSpec
}
