package marketmaker

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/swarm-collective/rwa-router/internal/chain"
)

// OfferType distinguishes how an offer may be filled.
type OfferType string

const (
	// PartialOffer is fillable in fragments and aggregable across takers.
	PartialOffer OfferType = "PartialOffer"
	// BlockOffer must be taken atomically by a single taker.
	BlockOffer OfferType = "BlockOffer"
)

// PricingType distinguishes how an offer is priced.
type PricingType string

const (
	// FixedPricing sets the price once at offer creation.
	FixedPricing PricingType = "FixedPricing"
	// DynamicPricing derives the price from a live feed at settlement time.
	DynamicPricing PricingType = "DynamicPricing"
)

// OfferStatus is the fill state reported by the offer API.
type OfferStatus string

const (
	OfferNotTaken       OfferStatus = "NotTaken"
	OfferPartiallyTaken OfferStatus = "PartiallyTaken"
	OfferTaken          OfferStatus = "Taken"
)

// Asset describes one leg of an offer.
type Asset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Address       string `json:"address"`
	Decimals      int32  `json:"decimals"`
	TokenStandard string `json:"tokenStandard"`
}

// OfferPrice carries the pricing mode and, for fixed offers, the unit price.
type OfferPrice struct {
	ID          string      `json:"id"`
	PricingType PricingType `json:"pricingType"`
	UnitPrice   string      `json:"unitPrice,omitempty"`
}

// Offer is a standing offer from the discovery API. Amounts are smallest-unit
// integer strings in the respective asset's decimals. The taker pays the
// withdrawal asset and receives the deposit asset.
type Offer struct {
	ID                      string      `json:"id"`
	Maker                   string      `json:"maker"`
	AmountIn                string      `json:"amountIn"`
	AmountOut               string      `json:"amountOut"`
	AvailableAmount         string      `json:"availableAmount"`
	DepositAsset            Asset       `json:"depositAsset"`
	WithdrawalAsset         Asset       `json:"withdrawalAsset"`
	OfferType               OfferType   `json:"offerType"`
	OfferStatus             OfferStatus `json:"offerStatus"`
	OfferPrice              OfferPrice  `json:"offerPrice"`
	ExpiryTimestamp         string      `json:"expiryTimestamp"`
	DepositToWithdrawalRate string      `json:"depositToWithdrawalRate,omitempty"`
}

type offersResponse struct {
	Offers []Offer `json:"offers"`
}

// IsDynamic reports whether settlement must carry a max-rate bound.
func (o Offer) IsDynamic() bool {
	return o.OfferPrice.PricingType == DynamicPricing
}

// Expired reports whether the offer's expiry timestamp has passed at now.
// Offers with no expiry never expire.
func (o Offer) Expired(now time.Time) bool {
	if o.ExpiryTimestamp == "" || o.ExpiryTimestamp == "0" {
		return false
	}
	ts, err := strconv.ParseInt(o.ExpiryTimestamp, 10, 64)
	if err != nil {
		return false
	}
	return now.Unix() >= ts
}

// AvailableDeposit returns the normalized amount of the deposit asset still
// available to take.
func (o Offer) AvailableDeposit() (decimal.Decimal, error) {
	raw, err := parseBaseUnits(o.AvailableAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("offer %s available amount: %w", o.ID, err)
	}
	return chain.FromBaseUnits(raw, o.DepositAsset.Decimals), nil
}

// UnitPrice returns the normalized cost in withdrawal tokens per one deposit
// token. Fixed offers derive it from the original amountOut/amountIn pair;
// dynamic offers use the live depositToWithdrawalRate.
func (o Offer) UnitPrice() (decimal.Decimal, error) {
	if o.IsDynamic() {
		rate, err := o.DynamicRate()
		if err != nil {
			return decimal.Zero, err
		}
		return chain.FromBaseUnits(rate, o.WithdrawalAsset.Decimals), nil
	}

	in, err := parseBaseUnits(o.AmountIn)
	if err != nil {
		return decimal.Zero, fmt.Errorf("offer %s amountIn: %w", o.ID, err)
	}
	out, err := parseBaseUnits(o.AmountOut)
	if err != nil {
		return decimal.Zero, fmt.Errorf("offer %s amountOut: %w", o.ID, err)
	}

	deposit := chain.FromBaseUnits(in, o.DepositAsset.Decimals)
	withdrawal := chain.FromBaseUnits(out, o.WithdrawalAsset.Decimals)
	if !deposit.IsPositive() {
		return decimal.Zero, fmt.Errorf("offer %s has zero deposit amount", o.ID)
	}
	return withdrawal.Div(deposit), nil
}

// DynamicRate returns the live deposit-to-withdrawal rate in withdrawal
// token base units, as the settlement contract expects it.
func (o Offer) DynamicRate() (*big.Int, error) {
	if o.DepositToWithdrawalRate == "" {
		return nil, fmt.Errorf("offer %s is dynamic but has no depositToWithdrawalRate", o.ID)
	}
	rate, err := parseBaseUnits(o.DepositToWithdrawalRate)
	if err != nil {
		return nil, fmt.Errorf("offer %s depositToWithdrawalRate: %w", o.ID, err)
	}
	return rate, nil
}

func parseBaseUnits(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base unit amount %q", s)
	}
	return n, nil
}
