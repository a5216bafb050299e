package crosschain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
)

// APIError is a non-retryable venue API failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cross chain access api returned %d: %s", e.Status, e.Body)
}

// ErrorHandler classifies venue 4xx responses for the HTTP executor.
func ErrorHandler(status int, body []byte) error {
	return &APIError{Status: status, Body: string(body)}
}

// TokenProvider supplies a valid bearer token for the venue API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// APIClient talks to the stock bridge REST API. All endpoints except the
// asset quote require a bearer token.
type APIClient struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	base   string
	tokens TokenProvider
}

func NewAPIClient(logger *zap.Logger, exec *httpclient.Executor, baseURL string, tokens TokenProvider) *APIClient {
	return &APIClient{
		logger: logger,
		exec:   exec,
		base:   strings.TrimRight(baseURL, "/"),
		tokens: tokens,
	}
}

type statusEnvelope struct {
	Data struct {
		Attributes struct {
			AccountBlocked       bool   `json:"account_blocked"`
			TradingBlocked       bool   `json:"trading_blocked"`
			TransfersBlocked     bool   `json:"transfers_blocked"`
			TradeSuspendedByUser bool   `json:"trade_suspended_by_user"`
			MarketOpen           bool   `json:"market_open"`
			AccountStatus        string `json:"account_status"`
		} `json:"attributes"`
	} `json:"data"`
}

type fundsEnvelope struct {
	Data struct {
		Attributes struct {
			Cash                  decimal.Decimal `json:"cash"`
			BuyingPower           decimal.Decimal `json:"buying_power"`
			DayTradingBuyingPower decimal.Decimal `json:"day_trading_buying_power"`
			EffectiveBuyingPower  decimal.Decimal `json:"effective_buying_power"`
			NonMarginBuyingPower  decimal.Decimal `json:"non_margin_buying_power"`
			RegTBuyingPower       decimal.Decimal `json:"reg_t_buying_power"`
		} `json:"attributes"`
	} `json:"data"`
}

type assetQuoteEnvelope struct {
	Data struct {
		Attributes struct {
			BidPrice    decimal.Decimal `json:"bidPrice"`
			AskPrice    decimal.Decimal `json:"askPrice"`
			BidSize     decimal.Decimal `json:"bidSize"`
			AskSize     decimal.Decimal `json:"askSize"`
			Timestamp   string          `json:"timestamp"`
			BidExchange string          `json:"bidExchange"`
			AskExchange string          `json:"askExchange"`
		} `json:"attributes"`
	} `json:"data"`
}

type orderEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Symbol    string          `json:"symbol"`
			Side      string          `json:"side"`
			Qty       decimal.Decimal `json:"qty"`
			FilledQty decimal.Decimal `json:"filled_qty"`
			Status    string          `json:"status"`
			CreatedAt string          `json:"created_at"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *APIClient) get(ctx context.Context, path string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if authed {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("acquire token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.exec.DoJSON(ctx, req, "cross_chain_access", out)
}

// GetAccountStatus fetches the trading eligibility flags.
func (c *APIClient) GetAccountStatus(ctx context.Context) (AccountStatus, error) {
	var env statusEnvelope
	if err := c.get(ctx, "/status", true, &env); err != nil {
		return AccountStatus{}, fmt.Errorf("get account status: %w", err)
	}
	a := env.Data.Attributes
	return AccountStatus{
		AccountBlocked:       a.AccountBlocked,
		TradingBlocked:       a.TradingBlocked,
		TransfersBlocked:     a.TransfersBlocked,
		TradeSuspendedByUser: a.TradeSuspendedByUser,
		MarketOpen:           a.MarketOpen,
		AccountStatus:        a.AccountStatus,
	}, nil
}

// GetAccountFunds fetches buying power for pre-trade validation.
func (c *APIClient) GetAccountFunds(ctx context.Context) (AccountFunds, error) {
	var env fundsEnvelope
	if err := c.get(ctx, "/funds", true, &env); err != nil {
		return AccountFunds{}, fmt.Errorf("get account funds: %w", err)
	}
	a := env.Data.Attributes
	return AccountFunds{
		Cash:                  a.Cash,
		BuyingPower:           a.BuyingPower,
		DayTradingBuyingPower: a.DayTradingBuyingPower,
		EffectiveBuyingPower:  a.EffectiveBuyingPower,
		NonMarginBuyingPower:  a.NonMarginBuyingPower,
		RegTBuyingPower:       a.RegTBuyingPower,
	}, nil
}

// GetAssetQuote fetches the real-time bid/ask for a symbol.
func (c *APIClient) GetAssetQuote(ctx context.Context, symbol string) (AssetQuote, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("currency", "usd")

	var env assetQuoteEnvelope
	if err := c.get(ctx, "/asset-quote?"+params.Encode(), false, &env); err != nil {
		return AssetQuote{}, fmt.Errorf("get asset quote for %s: %w", symbol, err)
	}

	a := env.Data.Attributes
	ts, err := time.Parse(time.RFC3339, a.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	quote := AssetQuote{
		BidPrice:    a.BidPrice,
		AskPrice:    a.AskPrice,
		BidSize:     a.BidSize,
		AskSize:     a.AskSize,
		Timestamp:   ts,
		BidExchange: a.BidExchange,
		AskExchange: a.AskExchange,
	}

	c.logger.Debug("cross_chain_access.asset_quote",
		zap.String("symbol", symbol),
		zap.String("bid", quote.BidPrice.String()),
		zap.String("ask", quote.AskPrice.String()),
	)
	return quote, nil
}

// CreateOrder submits the phase-2 order referencing a confirmed escrow
// transfer.
func (c *APIClient) CreateOrder(ctx context.Context, order OrderRequest) (OrderResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("acquire token: %w", err)
	}

	targetChain := order.TargetChainID
	if targetChain == 0 {
		targetChain = order.ChainID
	}

	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"wallet":          strings.ToLower(order.Wallet),
				"tx_hash":         order.TxHash,
				"asset":           strings.ToLower(order.AssetAddress),
				"asset_symbol":    strings.ToUpper(order.AssetSymbol),
				"side":            string(order.Side),
				"price":           order.Price,
				"qty":             order.Quantity,
				"notional":        order.Notional,
				"chain_id":        order.ChainID,
				"target_chain_id": targetChain,
				"user_email":      order.UserEmail,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/orders", bytes.NewReader(body))
	if err != nil {
		return OrderResponse{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var env orderEnvelope
	if err := c.exec.DoJSON(ctx, req, "cross_chain_access", &env); err != nil {
		return OrderResponse{}, fmt.Errorf("create order: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, env.Data.Attributes.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	resp := OrderResponse{
		OrderID:   env.Data.ID,
		Symbol:    env.Data.Attributes.Symbol,
		Side:      env.Data.Attributes.Side,
		Quantity:  env.Data.Attributes.Qty,
		FilledQty: env.Data.Attributes.FilledQty,
		Status:    env.Data.Attributes.Status,
		CreatedAt: createdAt,
	}

	c.logger.Info("cross_chain_access.order_created",
		zap.String("order_id", resp.OrderID),
		zap.String("symbol", resp.Symbol),
		zap.String("status", resp.Status),
	)
	return resp, nil
}
