package marketmaker

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/chain"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// ChainGateway is the on-chain surface the venue needs. Satisfied by the
// chain package's token and offer book services; faked in tests.
type ChainGateway interface {
	Decimals(ctx context.Context, token string) (int32, error)
	WalletBalance(ctx context.Context, token string) (decimal.Decimal, error)
	EnsureAllowance(ctx context.Context, token, spender string, amount decimal.Decimal) error
	ContractAddress() string
	TakeOfferFixed(ctx context.Context, offerID string, withdrawalAmountPaid *big.Int) (string, error)
	TakeOfferDynamic(ctx context.Context, offerID string, withdrawalAmountPaid, maxRate *big.Int) (string, error)
	MakeOffer(ctx context.Context, depositToken string, depositAmount *big.Int, withdrawToken string, withdrawAmount *big.Int, isDynamic bool, expiresAt time.Time) (string, string, error)
	CancelOffer(ctx context.Context, offerID string) (string, error)
}

// Client is the Market Maker venue: offer discovery plus on-chain
// settlement against the offer book contract.
type Client struct {
	logger   *zap.Logger
	api      *APIClient
	gateway  ChainGateway
	network  model.Network
	slippage decimal.Decimal
	now      func() time.Time
}

func New(logger *zap.Logger, api *APIClient, gateway ChainGateway, network model.Network, slippage decimal.Decimal) *Client {
	return &Client{
		logger:   logger,
		api:      api,
		gateway:  gateway,
		network:  network,
		slippage: slippage,
		now:      time.Now,
	}
}

func (c *Client) Source() model.Source { return model.SourceMarketMaker }

func (c *Client) selection(ctx context.Context, req model.TradeRequest) (Selection, error) {
	if err := req.Amount.Validate(); err != nil {
		return Selection{}, err
	}

	offers, err := c.api.GetOffers(ctx, req.BuyToken, req.SellToken)
	if err != nil {
		return Selection{}, err
	}

	return SelectBest(offers, req.Amount, c.now().UTC())
}

// GetQuote selects the cheapest offer combination covering the one-sided
// amount and normalizes it. Insufficient liquidity surfaces as
// UnavailableError, transport failures as plain errors.
func (c *Client) GetQuote(ctx context.Context, req model.TradeRequest) (model.Quote, error) {
	sel, err := c.selection(ctx, req)
	if err != nil {
		return model.Quote{}, err
	}

	quote := model.NewQuote(model.SourceMarketMaker,
		req.SellToken, sel.TotalWithdrawal,
		req.BuyToken, sel.TotalDeposit,
		c.now().UTC())

	c.logger.Info("market_maker.quote",
		zap.String("sell_amount", quote.SellAmount.String()),
		zap.String("buy_amount", quote.BuyAmount.String()),
		zap.String("rate", quote.Rate.String()),
		zap.Int("offers", len(sel.Offers)),
	)
	return quote, nil
}

// Trade settles the selected offers sequentially on-chain. Each take is a
// single atomic call; a failure after earlier legs filled is reported as a
// terminal PartialFillError so the orchestrator never re-trades the full
// amount elsewhere.
func (c *Client) Trade(ctx context.Context, req model.TradeRequest) (model.TradeResult, error) {
	sel, err := c.selection(ctx, req)
	if err != nil {
		return model.TradeResult{}, err
	}

	balance, err := c.gateway.WalletBalance(ctx, req.SellToken)
	if err != nil {
		return model.TradeResult{}, fmt.Errorf("check balance: %w", err)
	}
	if balance.LessThan(sel.TotalWithdrawal) {
		return model.TradeResult{}, fmt.Errorf("insufficient balance: have %s, need %s of %s",
			balance, sel.TotalWithdrawal, req.SellToken)
	}

	// Approval carries the slippage headroom so dynamic legs cannot fail on
	// allowance after the rate moves within the accepted bound.
	bound := sel.TotalWithdrawal.Mul(decimal.NewFromInt(1).Add(c.slippage))
	if err := c.gateway.EnsureAllowance(ctx, req.SellToken, c.gateway.ContractAddress(), bound); err != nil {
		return model.TradeResult{}, fmt.Errorf("approve offer book: %w", err)
	}

	var (
		filledIDs []string
		txHashes  []string
	)
	for _, leg := range sel.Offers {
		var txHash string
		var takeErr error

		if leg.PricingType == DynamicPricing {
			maxRate := c.maxRate(leg.DynamicRate)
			txHash, takeErr = c.gateway.TakeOfferDynamic(ctx, leg.ID, leg.WithdrawalAmountPaid, maxRate)
		} else {
			txHash, takeErr = c.gateway.TakeOfferFixed(ctx, leg.ID, leg.WithdrawalAmountPaid)
		}

		if takeErr != nil {
			if len(filledIDs) > 0 {
				return model.TradeResult{}, &model.PartialFillError{
					FilledOffers: filledIDs,
					TxHashes:     txHashes,
					Err:          takeErr,
				}
			}
			return model.TradeResult{}, fmt.Errorf("take offer %s: %w", leg.ID, takeErr)
		}

		filledIDs = append(filledIDs, leg.ID)
		txHashes = append(txHashes, txHash)
	}

	result := model.TradeResult{
		TxHash:     txHashes[len(txHashes)-1],
		OrderID:    strings.Join(filledIDs, ","),
		SellToken:  req.SellToken,
		SellAmount: sel.TotalWithdrawal,
		BuyToken:   req.BuyToken,
		BuyAmount:  sel.TotalDeposit,
		Rate:       sel.Rate,
		Source:     model.SourceMarketMaker,
		Timestamp:  c.now().UTC(),
		Network:    c.network,
	}

	c.logger.Info("market_maker.trade_settled",
		zap.String("tx", result.TxHash),
		zap.String("offers", result.OrderID),
		zap.String("sell_amount", result.SellAmount.String()),
		zap.String("buy_amount", result.BuyAmount.String()),
	)
	return result, nil
}

// maxRate applies the slippage buffer to a dynamic offer's live rate. The
// bound is rounded up so the buffer never tightens below the quoted rate.
func (c *Client) maxRate(rate *big.Int) *big.Int {
	if rate == nil {
		return big.NewInt(0)
	}
	return decimal.NewFromBigInt(rate, 0).
		Mul(decimal.NewFromInt(1).Add(c.slippage)).
		Ceil().
		BigInt()
}

// MakeOffer publishes a maker-side offer on the book. Amounts are normalized;
// conversion uses each token's on-chain decimals.
func (c *Client) MakeOffer(ctx context.Context, depositToken string, depositAmount decimal.Decimal, withdrawToken string, withdrawAmount decimal.Decimal, isDynamic bool, expiresAt time.Time) (string, string, error) {
	dd, err := c.gateway.Decimals(ctx, depositToken)
	if err != nil {
		return "", "", err
	}
	wd, err := c.gateway.Decimals(ctx, withdrawToken)
	if err != nil {
		return "", "", err
	}

	if err := c.gateway.EnsureAllowance(ctx, depositToken, c.gateway.ContractAddress(), depositAmount); err != nil {
		return "", "", fmt.Errorf("approve deposit: %w", err)
	}

	txHash, offerID, err := c.gateway.MakeOffer(ctx,
		depositToken, chain.ToBaseUnits(depositAmount, dd),
		withdrawToken, chain.ToBaseUnits(withdrawAmount, wd),
		isDynamic, expiresAt)
	if err != nil {
		return "", "", err
	}

	c.logger.Info("market_maker.offer_published",
		zap.String("offer_id", offerID),
		zap.String("tx", txHash),
	)
	return txHash, offerID, nil
}

// CancelOffer withdraws one of the wallet's own offers.
func (c *Client) CancelOffer(ctx context.Context, offerID string) (string, error) {
	return c.gateway.CancelOffer(ctx, offerID)
}
