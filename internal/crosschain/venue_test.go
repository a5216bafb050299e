package crosschain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

const (
	usdcAddr   = "0x3333333333333333333333333333333333333333"
	tslaAddr   = "0x4444444444444444444444444444444444444444"
	escrowAddr = "0x5555555555555555555555555555555555555555"
	wallet     = "0x6666666666666666666666666666666666666666"
)

// Tuesday mid-session, market open.
var marketOpenAt = time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC)

type staticTokens struct{}

func (staticTokens) Token(context.Context) (string, error) { return "test-token", nil }

type fakeGateway struct {
	balance     decimal.Decimal
	transfers   int
	transferTok string
	transferTo  string
	transferAmt decimal.Decimal
	transferErr error
}

func (g *fakeGateway) WalletBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	return g.balance, nil
}

func (g *fakeGateway) Transfer(_ context.Context, token, to string, amount decimal.Decimal) (string, error) {
	if g.transferErr != nil {
		return "", g.transferErr
	}
	g.transfers++
	g.transferTok, g.transferTo, g.transferAmt = token, to, amount
	return "0xescrowtx", nil
}

type venueServer struct {
	status     AccountStatus
	bid, ask   string
	quoteCalls int
	orderCalls int
	orderFail  bool
	lastOrder  map[string]any
}

func (s *venueServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			fmt.Fprintf(w, `{"data":{"attributes":{
				"account_blocked":%t,"trading_blocked":%t,"transfers_blocked":%t,
				"trade_suspended_by_user":%t,"market_open":%t,"account_status":"ACTIVE"}}}`,
				s.status.AccountBlocked, s.status.TradingBlocked, s.status.TransfersBlocked,
				s.status.TradeSuspendedByUser, s.status.MarketOpen)
		case "/funds":
			fmt.Fprint(w, `{"data":{"attributes":{"cash":100000,"buying_power":100000}}}`)
		case "/asset-quote":
			s.quoteCalls++
			fmt.Fprintf(w, `{"data":{"attributes":{"bidPrice":%s,"askPrice":%s,
				"bidSize":100,"askSize":100,"timestamp":"2026-08-25T16:00:00Z"}}}`, s.bid, s.ask)
		case "/orders":
			s.orderCalls++
			if s.orderFail {
				w.WriteHeader(http.StatusUnprocessableEntity)
				fmt.Fprint(w, `{"errors":[{"detail":"order rejected"}]}`)
				return
			}
			var body struct {
				Data struct {
					Attributes map[string]any `json:"attributes"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.lastOrder = body.Data.Attributes
			fmt.Fprint(w, `{"data":{"id":"ord-1","attributes":{
				"symbol":"TSLA","side":"buy","qty":"4","filled_qty":"0",
				"status":"pending","created_at":"2026-08-25T16:00:01Z"}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newVenue(t *testing.T, srv *venueServer, gateway *fakeGateway) *Client {
	t.Helper()
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)

	exec := httpclient.New(zap.NewNop(), nil, &http.Client{Timeout: 5 * time.Second}, 1, "cross_chain_access", ErrorHandler)
	api := NewAPIClient(zap.NewNop(), exec, ts.URL, staticTokens{})

	client := New(zap.NewNop(), api, gateway, Config{
		Network:       model.NetworkPolygon,
		USDCAddress:   usdcAddr,
		WalletAddress: wallet,
		UserEmail:     "trader@example.com",
		Slippage:      decimal.RequireFromString("0.01"),
	}, func() (string, error) { return escrowAddr, nil })
	client.now = func() time.Time { return marketOpenAt }
	return client
}

func openStatus() AccountStatus {
	return AccountStatus{MarketOpen: true}
}

func buyTSLA(usdcAmount int64) model.TradeRequest {
	return model.TradeRequest{
		SellToken: usdcAddr,
		BuyToken:  tslaAddr,
		Symbol:    "TSLA",
		Amount:    model.SellAmount(decimal.NewFromInt(usdcAmount)),
	}
}

func sellTSLA(qty int64) model.TradeRequest {
	return model.TradeRequest{
		SellToken: tslaAddr,
		BuyToken:  usdcAddr,
		Symbol:    "TSLA",
		Amount:    model.SellAmount(decimal.NewFromInt(qty)),
	}
}

func TestGetQuote_BuyPricesAtAsk(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	client := newVenue(t, srv, &fakeGateway{})

	quote, err := client.GetQuote(context.Background(), buyTSLA(1000))
	require.NoError(t, err)
	assert.Equal(t, model.SourceCrossChainAccess, quote.Source)
	// 1000 USDC at ask 200 = 5 TSLA.
	assert.True(t, quote.BuyAmount.Equal(decimal.NewFromInt(5)), quote.BuyAmount.String())
	assert.True(t, quote.SellAmount.Equal(decimal.NewFromInt(1000)))
}

func TestGetQuote_SellPricesAtBid(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	client := newVenue(t, srv, &fakeGateway{})

	quote, err := client.GetQuote(context.Background(), sellTSLA(2))
	require.NoError(t, err)
	// 2 TSLA at bid 199 = 398 USDC.
	assert.True(t, quote.BuyAmount.Equal(decimal.NewFromInt(398)), quote.BuyAmount.String())
}

func TestGetQuote_MarketClosedShortCircuits(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	client := newVenue(t, srv, &fakeGateway{})
	// Saturday.
	client.now = func() time.Time { return time.Date(2026, 8, 29, 16, 0, 0, 0, time.UTC) }

	_, err := client.GetQuote(context.Background(), buyTSLA(1000))
	require.Error(t, err)
	ue, ok := model.AsUnavailable(err)
	require.True(t, ok)
	assert.Contains(t, ue.Reason, "Market is closed")
	// No pricing call was made.
	assert.Zero(t, srv.quoteCalls)
}

func TestGetQuote_BlockedAccountShortCircuits(t *testing.T) {
	srv := &venueServer{status: AccountStatus{MarketOpen: true, TradingBlocked: true}, bid: "199", ask: "200"}
	client := newVenue(t, srv, &fakeGateway{})

	_, err := client.GetQuote(context.Background(), buyTSLA(1000))
	require.Error(t, err)
	ue, ok := model.AsUnavailable(err)
	require.True(t, ok)
	assert.Contains(t, ue.Reason, "trading blocked")
	assert.Zero(t, srv.quoteCalls)
}

func TestGetQuote_PairWithoutUSDCUnavailable(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	client := newVenue(t, srv, &fakeGateway{})

	req := model.TradeRequest{
		SellToken: tslaAddr,
		BuyToken:  "0x7777777777777777777777777777777777777777",
		Symbol:    "TSLA",
		Amount:    model.SellAmount(decimal.NewFromInt(1)),
	}
	_, err := client.GetQuote(context.Background(), req)
	_, ok := model.AsUnavailable(err)
	assert.True(t, ok)
}

func TestTrade_BuyTransfersUSDCToEscrow(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	gateway := &fakeGateway{}
	client := newVenue(t, srv, gateway)

	result, err := client.Trade(context.Background(), buyTSLA(1000))
	require.NoError(t, err)

	assert.Equal(t, "0xescrowtx", result.TxHash)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, model.SourceCrossChainAccess, result.Source)

	assert.Equal(t, usdcAddr, gateway.transferTok)
	assert.Equal(t, escrowAddr, gateway.transferTo)
	assert.True(t, gateway.transferAmt.Equal(decimal.NewFromInt(1000)))

	// The order references the escrow transfer.
	assert.Equal(t, "0xescrowtx", srv.lastOrder["tx_hash"])
	assert.Equal(t, "buy", srv.lastOrder["side"])
}

func TestTrade_SellTransfersRWA(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	gateway := &fakeGateway{balance: decimal.NewFromInt(10)}
	client := newVenue(t, srv, gateway)

	result, err := client.Trade(context.Background(), sellTSLA(2))
	require.NoError(t, err)
	assert.Equal(t, tslaAddr, gateway.transferTok)
	assert.True(t, gateway.transferAmt.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "sell", srv.lastOrder["side"])
	assert.Equal(t, model.NetworkPolygon, result.Network)
}

func TestTrade_SellInsufficientBalance(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	gateway := &fakeGateway{balance: decimal.NewFromInt(1)}
	client := newVenue(t, srv, gateway)

	_, err := client.Trade(context.Background(), sellTSLA(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient")
	assert.Zero(t, gateway.transfers)
}

func TestTrade_OrderFailureAfterTransferIsTerminal(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200", orderFail: true}
	gateway := &fakeGateway{}
	client := newVenue(t, srv, gateway)

	_, err := client.Trade(context.Background(), buyTSLA(1000))
	require.Error(t, err)

	var stranded *model.OrderSubmissionFailedAfterTransferError
	require.ErrorAs(t, err, &stranded)
	assert.Equal(t, "0xescrowtx", stranded.TxHash)
	assert.Equal(t, "TSLA", stranded.Symbol)
	assert.True(t, model.IsTerminalExecution(err))
	// Phase 1 ran exactly once.
	assert.Equal(t, 1, gateway.transfers)
}

func TestTrade_TransferFailureIsNotTerminal(t *testing.T) {
	srv := &venueServer{status: openStatus(), bid: "199", ask: "200"}
	gateway := &fakeGateway{transferErr: errors.New("rpc timeout")}
	client := newVenue(t, srv, gateway)

	_, err := client.Trade(context.Background(), buyTSLA(1000))
	require.Error(t, err)
	assert.False(t, model.IsTerminalExecution(err))
	assert.Zero(t, srv.orderCalls)
}

func TestAmounts_Quantization(t *testing.T) {
	// Buying 1 TSLA-share-third at ask 3: USDC rounds to cents, RWA to 9dp.
	spec := model.BuyAmount(decimal.RequireFromString("0.333333333333"))
	rwa, usdc, err := amounts(spec, OrderSideBuy, decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333", rwa.String())
	assert.Equal(t, "1", usdc.String())
}
