package marketmaker

import (
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/swarm-collective/rwa-router/internal/chain"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// coverageTolerance absorbs sub-precision residue when summing fractional
// fills toward the target.
var coverageTolerance = decimal.New(1, -9)

// SelectedOffer is one leg of a settlement plan.
type SelectedOffer struct {
	ID                   string
	OfferType            OfferType
	PricingType          PricingType
	Maker                string
	WithdrawalAmountPaid *big.Int // base units of the withdrawal asset
	WithdrawalDecimals   int32
	DynamicRate          *big.Int // base units, dynamic offers only
	DepositAmount        decimal.Decimal
	WithdrawalAmount     decimal.Decimal
}

// Selection is the cheapest combination of offers covering a one-sided
// target. TotalDeposit is what the taker receives, TotalWithdrawal what the
// taker pays; Rate is buy-per-sell (deposit per withdrawal).
type Selection struct {
	Offers          []SelectedOffer
	TotalDeposit    decimal.Decimal
	TotalWithdrawal decimal.Decimal
	Rate            decimal.Decimal
}

type rankedOffer struct {
	offer     Offer
	unitPrice decimal.Decimal
	available decimal.Decimal
}

// SelectBest greedily picks the cheapest offers until the target is covered.
// PARTIAL offers are taken fractionally; BLOCK offers are all-or-nothing and
// skipped when taking the whole block would overshoot the target. Returns
// UnavailableError when the book cannot cover the target.
func SelectBest(offers []Offer, spec model.AmountSpec, now time.Time) (Selection, error) {
	if err := spec.Validate(); err != nil {
		return Selection{}, err
	}

	ranked := make([]rankedOffer, 0, len(offers))
	for _, o := range offers {
		if o.OfferStatus == OfferTaken || o.Expired(now) {
			continue
		}
		unitPrice, err := o.UnitPrice()
		if err != nil || !unitPrice.IsPositive() {
			continue
		}
		available, err := o.AvailableDeposit()
		if err != nil || !available.IsPositive() {
			continue
		}
		ranked = append(ranked, rankedOffer{offer: o, unitPrice: unitPrice, available: available})
	}
	if len(ranked) == 0 {
		return Selection{}, model.Unavailable(model.SourceMarketMaker, "no open offers for the pair")
	}

	// Cheapest withdrawal-per-deposit first; offer ID breaks price ties so
	// selection is deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].unitPrice.Equal(ranked[j].unitPrice) {
			return ranked[i].unitPrice.LessThan(ranked[j].unitPrice)
		}
		return ranked[i].offer.ID < ranked[j].offer.ID
	})

	var sel Selection
	remaining := spec.Target()

	for _, r := range ranked {
		if remaining.LessThanOrEqual(coverageTolerance) {
			break
		}

		var depositTake, withdrawalPay decimal.Decimal
		if spec.Buy != nil {
			// Target is deposit tokens to receive.
			depositTake = decimal.Min(remaining, r.available)
			if r.offer.OfferType == BlockOffer {
				if r.available.GreaterThan(remaining.Add(coverageTolerance)) {
					continue
				}
				depositTake = r.available
			}
			withdrawalPay = depositTake.Mul(r.unitPrice)
			remaining = remaining.Sub(depositTake)
		} else {
			// Target is withdrawal tokens to spend.
			fullCost := r.available.Mul(r.unitPrice)
			if r.offer.OfferType == BlockOffer {
				if fullCost.GreaterThan(remaining.Add(coverageTolerance)) {
					continue
				}
				depositTake = r.available
				withdrawalPay = fullCost
			} else {
				withdrawalPay = decimal.Min(remaining, fullCost)
				depositTake = withdrawalPay.Div(r.unitPrice)
			}
			remaining = remaining.Sub(withdrawalPay)
		}

		leg := SelectedOffer{
			ID:                   r.offer.ID,
			OfferType:            r.offer.OfferType,
			PricingType:          r.offer.OfferPrice.PricingType,
			Maker:                r.offer.Maker,
			WithdrawalAmountPaid: chain.ToBaseUnits(withdrawalPay, r.offer.WithdrawalAsset.Decimals),
			WithdrawalDecimals:   r.offer.WithdrawalAsset.Decimals,
			DepositAmount:        depositTake,
			WithdrawalAmount:     withdrawalPay,
		}
		if r.offer.IsDynamic() {
			rate, err := r.offer.DynamicRate()
			if err != nil {
				continue
			}
			leg.DynamicRate = rate
		}

		sel.Offers = append(sel.Offers, leg)
		sel.TotalDeposit = sel.TotalDeposit.Add(depositTake)
		sel.TotalWithdrawal = sel.TotalWithdrawal.Add(withdrawalPay)
	}

	if remaining.GreaterThan(coverageTolerance) {
		return Selection{}, model.Unavailable(model.SourceMarketMaker,
			"insufficient offer liquidity: %s of the target uncovered", remaining)
	}

	if sel.TotalWithdrawal.IsPositive() {
		sel.Rate = sel.TotalDeposit.Div(sel.TotalWithdrawal)
	}
	return sel, nil
}
