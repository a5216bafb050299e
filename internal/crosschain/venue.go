package crosschain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/crosschain/markethours"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Token decimals for amount quantization. The bridge settles RWA quantities
// at 9 decimal places and USDC notionals at cents.
const (
	RWADecimals  int32 = 9
	USDCDecimals int32 = 2
)

// Gateway is the on-chain surface the venue needs: balance reads and the
// phase-1 escrow transfer. Satisfied by the chain package's token service.
type Gateway interface {
	WalletBalance(ctx context.Context, token string) (decimal.Decimal, error)
	Transfer(ctx context.Context, token, to string, amount decimal.Decimal) (string, error)
}

// Config carries the immutable venue wiring.
type Config struct {
	Network       model.Network
	USDCAddress   string
	WalletAddress string
	UserEmail     string
	Slippage      decimal.Decimal
}

// Client is the Cross-Chain Access venue: KYC-gated stock bridge with
// two-phase settlement (escrow transfer, then order submission).
type Client struct {
	logger  *zap.Logger
	api     *APIClient
	gateway Gateway
	cfg     Config
	escrow  func() (string, error)
	now     func() time.Time
}

// New builds the venue client. escrow resolves the current topup address
// from remote configuration at execution time.
func New(logger *zap.Logger, api *APIClient, gateway Gateway, cfg Config, escrow func() (string, error)) *Client {
	return &Client{
		logger:  logger,
		api:     api,
		gateway: gateway,
		cfg:     cfg,
		escrow:  escrow,
		now:     time.Now,
	}
}

func (c *Client) Source() model.Source { return model.SourceCrossChainAccess }

// direction maps the request pair onto the venue's BUY/SELL. One side of
// the pair must be USDC; the other is the RWA token.
func (c *Client) direction(req model.TradeRequest) (OrderSide, string, error) {
	usdc := strings.EqualFold(req.SellToken, c.cfg.USDCAddress)
	if usdc {
		return OrderSideBuy, req.BuyToken, nil
	}
	if strings.EqualFold(req.BuyToken, c.cfg.USDCAddress) {
		return OrderSideSell, req.SellToken, nil
	}
	return "", "", model.Unavailable(model.SourceCrossChainAccess,
		"unsupported pair: one side must be USDC (%s)", c.cfg.USDCAddress)
}

// checkAvailability short-circuits before any pricing call: first the local
// market-hours oracle, then the account eligibility flags.
func (c *Client) checkAvailability(ctx context.Context) error {
	if open, msg := markethours.Status(c.now()); !open {
		return model.Unavailable(model.SourceCrossChainAccess, "%s", msg)
	}

	status, err := c.api.GetAccountStatus(ctx)
	if err != nil {
		return fmt.Errorf("account status check: %w", err)
	}
	if !status.TradingAllowed() {
		return model.Unavailable(model.SourceCrossChainAccess,
			"account not eligible: %s", strings.Join(status.BlockReasons(), ", "))
	}
	return nil
}

// priceSymbol fetches the spread and returns the side that prices this
// direction. A missing symbol is ordinary unavailability, not a failure.
func (c *Client) priceSymbol(ctx context.Context, symbol string, side OrderSide) (decimal.Decimal, error) {
	quote, err := c.api.GetAssetQuote(ctx, symbol)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return decimal.Zero, model.Unavailable(model.SourceCrossChainAccess,
				"unknown trading symbol %q", symbol)
		}
		return decimal.Zero, err
	}

	price := quote.PriceForSide(side)
	if !price.IsPositive() {
		return decimal.Zero, model.Unavailable(model.SourceCrossChainAccess,
			"no %s pricing for %s", side, symbol)
	}
	return price, nil
}

// amounts resolves the one-sided spec against the price and quantizes to
// venue precision. Returns (rwa, usdc).
func amounts(spec model.AmountSpec, side OrderSide, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	// Rate is buy-per-sell. BUY acquires RWA with USDC, so the rate is the
	// inverse price; SELL receives USDC per RWA, the price itself.
	rate := price
	if side == OrderSideBuy {
		rate = decimal.NewFromInt(1).Div(price)
	}

	sell, buy, err := spec.Resolve(rate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	var rwa, usdc decimal.Decimal
	if side == OrderSideBuy {
		usdc, rwa = sell, buy
	} else {
		rwa, usdc = sell, buy
	}
	return rwa.Round(RWADecimals), usdc.Round(USDCDecimals), nil
}

// GetQuote prices the request at the live spread after the availability
// short-circuits. Never calls the pricing endpoint when the market is
// closed or the account is blocked.
func (c *Client) GetQuote(ctx context.Context, req model.TradeRequest) (model.Quote, error) {
	if err := req.Amount.Validate(); err != nil {
		return model.Quote{}, err
	}
	side, _, err := c.direction(req)
	if err != nil {
		return model.Quote{}, err
	}
	if req.Symbol == "" {
		return model.Quote{}, model.Unavailable(model.SourceCrossChainAccess, "no trading symbol for pair")
	}

	if err := c.checkAvailability(ctx); err != nil {
		return model.Quote{}, err
	}

	price, err := c.priceSymbol(ctx, req.Symbol, side)
	if err != nil {
		return model.Quote{}, err
	}

	rwa, usdc, err := amounts(req.Amount, side, price)
	if err != nil {
		return model.Quote{}, err
	}

	var sellAmount, buyAmount decimal.Decimal
	if side == OrderSideBuy {
		sellAmount, buyAmount = usdc, rwa
	} else {
		sellAmount, buyAmount = rwa, usdc
	}

	quote := model.NewQuote(model.SourceCrossChainAccess,
		req.SellToken, sellAmount, req.BuyToken, buyAmount, c.now().UTC())

	c.logger.Info("cross_chain_access.quote",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(side)),
		zap.String("price", price.String()),
		zap.String("rate", quote.Rate.String()),
	)
	return quote, nil
}

// Trade executes the two-phase settlement: fund checks, escrow transfer,
// then order submission referencing the transfer hash. A phase-2 failure
// after a confirmed transfer is terminal; funds sit in escrow and phase 1
// must never be retried.
func (c *Client) Trade(ctx context.Context, req model.TradeRequest) (model.TradeResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return model.TradeResult{}, err
	}
	side, rwaToken, err := c.direction(req)
	if err != nil {
		return model.TradeResult{}, err
	}
	if req.Symbol == "" {
		return model.TradeResult{}, model.Unavailable(model.SourceCrossChainAccess, "no trading symbol for pair")
	}

	if err := c.checkAvailability(ctx); err != nil {
		return model.TradeResult{}, err
	}

	price, err := c.priceSymbol(ctx, req.Symbol, side)
	if err != nil {
		return model.TradeResult{}, err
	}

	// The settlement bound buffers the quoted price so the order survives
	// spread movement between quote and escrow confirmation.
	bound := price
	if side == OrderSideBuy {
		bound = price.Mul(decimal.NewFromInt(1).Add(c.cfg.Slippage))
	} else {
		bound = price.Mul(decimal.NewFromInt(1).Sub(c.cfg.Slippage))
	}

	rwa, usdc, err := amounts(req.Amount, side, bound)
	if err != nil {
		return model.TradeResult{}, err
	}

	var transferToken string
	var transferAmount decimal.Decimal
	if side == OrderSideBuy {
		funds, err := c.api.GetAccountFunds(ctx)
		if err != nil {
			return model.TradeResult{}, fmt.Errorf("funds check: %w", err)
		}
		if !funds.Covers(usdc) {
			return model.TradeResult{}, fmt.Errorf("insufficient buying power: need %s, have %s",
				usdc, funds.BuyingPower)
		}
		transferToken, transferAmount = c.cfg.USDCAddress, usdc
	} else {
		balance, err := c.gateway.WalletBalance(ctx, rwaToken)
		if err != nil {
			return model.TradeResult{}, fmt.Errorf("balance check: %w", err)
		}
		if balance.LessThan(rwa) {
			return model.TradeResult{}, fmt.Errorf("insufficient %s balance: need %s, have %s",
				req.Symbol, rwa, balance)
		}
		transferToken, transferAmount = rwaToken, rwa
	}

	escrowAddr, err := c.escrow()
	if err != nil {
		return model.TradeResult{}, fmt.Errorf("resolve escrow address: %w", err)
	}

	// Phase 1: escrow transfer.
	txHash, err := c.gateway.Transfer(ctx, transferToken, escrowAddr, transferAmount)
	if err != nil {
		return model.TradeResult{}, fmt.Errorf("escrow transfer: %w", err)
	}

	// Phase 2: order submission. From here on, failure strands funds in
	// escrow and must surface as terminal.
	order, err := c.api.CreateOrder(ctx, OrderRequest{
		Wallet:       c.cfg.WalletAddress,
		TxHash:       txHash,
		AssetAddress: rwaToken,
		AssetSymbol:  req.Symbol,
		Side:         side,
		Price:        bound,
		Quantity:     rwa,
		Notional:     usdc,
		ChainID:      c.cfg.Network.ChainID(),
		UserEmail:    c.cfg.UserEmail,
	})
	if err != nil {
		c.logger.Error("cross_chain_access.order_failed_after_transfer",
			zap.String("tx", txHash),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return model.TradeResult{}, &model.OrderSubmissionFailedAfterTransferError{
			TxHash: txHash,
			Symbol: req.Symbol,
			Err:    err,
		}
	}

	var sellAmount, buyAmount decimal.Decimal
	if side == OrderSideBuy {
		sellAmount, buyAmount = usdc, rwa
	} else {
		sellAmount, buyAmount = rwa, usdc
	}

	rate := decimal.Zero
	if sellAmount.IsPositive() {
		rate = buyAmount.Div(sellAmount)
	}
	result := model.TradeResult{
		TxHash:     txHash,
		OrderID:    order.OrderID,
		SellToken:  req.SellToken,
		SellAmount: sellAmount,
		BuyToken:   req.BuyToken,
		BuyAmount:  buyAmount,
		Rate:       rate,
		Source:     model.SourceCrossChainAccess,
		Timestamp:  c.now().UTC(),
		Network:    c.cfg.Network,
	}

	c.logger.Info("cross_chain_access.trade_settled",
		zap.String("order_id", result.OrderID),
		zap.String("tx", result.TxHash),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(side)),
	)
	return result, nil
}
