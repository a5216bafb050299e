package trading

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/routing"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

type fakeVenue struct {
	source     model.Source
	rate       string
	quoteErr   error
	quoteDelay time.Duration
	quoteCalls atomic.Int32
	tradeErr   error
	tradeCalls atomic.Int32
}

func (v *fakeVenue) Source() model.Source { return v.source }

func (v *fakeVenue) GetQuote(ctx context.Context, req model.TradeRequest) (model.Quote, error) {
	v.quoteCalls.Add(1)
	if v.quoteDelay > 0 {
		select {
		case <-time.After(v.quoteDelay):
		case <-ctx.Done():
			return model.Quote{}, ctx.Err()
		}
	}
	if v.quoteErr != nil {
		return model.Quote{}, v.quoteErr
	}
	return model.NewQuote(v.source,
		req.SellToken, decimal.NewFromInt(1),
		req.BuyToken, decimal.RequireFromString(v.rate),
		time.Now().UTC()), nil
}

func (v *fakeVenue) Trade(_ context.Context, req model.TradeRequest) (model.TradeResult, error) {
	v.tradeCalls.Add(1)
	if v.tradeErr != nil {
		return model.TradeResult{}, v.tradeErr
	}
	return model.TradeResult{
		TxHash:    "0x" + string(v.source),
		SellToken: req.SellToken,
		BuyToken:  req.BuyToken,
		Source:    v.source,
		Timestamp: time.Now().UTC(),
	}, nil
}

type fakeRecorder struct {
	trades    []model.TradeResult
	incidents []model.EscrowIncidentEvent
}

func (r *fakeRecorder) RecordTrade(_ context.Context, result model.TradeResult) error {
	r.trades = append(r.trades, result)
	return nil
}

func (r *fakeRecorder) RecordEscrowIncident(_ context.Context, incident model.EscrowIncidentEvent) error {
	r.incidents = append(r.incidents, incident)
	return nil
}

func request() model.TradeRequest {
	return model.TradeRequest{
		SellToken: "0xusdc",
		BuyToken:  "0xtsla",
		Symbol:    "TSLA",
		Amount:    model.SellAmount(decimal.NewFromInt(1000)),
	}
}

func newClient(cc, mm *fakeVenue, store Recorder) *Client {
	return New(zap.NewNop(), routing.New(zap.NewNop()), cc, mm, store, nil, routing.StrategyBestPrice)
}

func TestTrade_InvalidSpecBeforeAnyNetworkCall(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.01"}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.01"}
	client := newClient(cc, mm, nil)

	both := decimal.NewFromInt(1)
	req := request()
	req.Amount = model.AmountSpec{Sell: &both, Buy: &both}

	_, err := client.Trade(context.Background(), req)
	require.ErrorIs(t, err, model.ErrInvalidAmountSpec)

	_, err = client.GetQuotes(context.Background(), req)
	require.ErrorIs(t, err, model.ErrInvalidAmountSpec)

	assert.Zero(t, cc.quoteCalls.Load())
	assert.Zero(t, mm.quoteCalls.Load())
}

func TestTrade_BestPriceExecutesOnHigherRate(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120"}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	store := &fakeRecorder{}
	client := newClient(cc, mm, store)

	result, err := client.Trade(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, model.SourceCrossChainAccess, result.Source)
	assert.Equal(t, int32(1), cc.tradeCalls.Load())
	assert.Zero(t, mm.tradeCalls.Load())
	require.Len(t, store.trades, 1)
}

func TestTrade_FallbackAfterPrimaryExecutionFailure(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120", tradeErr: errors.New("order rejected")}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	client := newClient(cc, mm, nil)

	result, err := client.TradeWithStrategy(context.Background(), request(), routing.StrategyCrossChainAccessFirst)
	require.NoError(t, err)
	assert.Equal(t, model.SourceMarketMaker, result.Source)
	assert.Equal(t, int32(1), cc.tradeCalls.Load())
	assert.Equal(t, int32(1), mm.tradeCalls.Load())
}

func TestTrade_NoFallbackForOnlyStrategies(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120", tradeErr: errors.New("order rejected")}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	client := newClient(cc, mm, nil)

	_, err := client.TradeWithStrategy(context.Background(), request(), routing.StrategyCrossChainAccessOnly)
	require.Error(t, err)
	assert.Zero(t, mm.tradeCalls.Load())
}

func TestTrade_TerminalErrorBlocksFallback(t *testing.T) {
	stranded := &model.OrderSubmissionFailedAfterTransferError{
		TxHash: "0xescrowtx",
		Symbol: "TSLA",
		Err:    errors.New("order rejected"),
	}
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120", tradeErr: stranded}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	store := &fakeRecorder{}
	client := newClient(cc, mm, store)

	_, err := client.TradeWithStrategy(context.Background(), request(), routing.StrategyCrossChainAccessFirst)
	require.Error(t, err)
	require.ErrorAs(t, err, &stranded)

	// Funds sit in escrow; re-trading elsewhere would double-spend.
	assert.Zero(t, mm.tradeCalls.Load())
	require.Len(t, store.incidents, 1)
	assert.Equal(t, "0xescrowtx", store.incidents[0].TxHash)
}

func TestTrade_BothVenuesUnavailableIsNoLiquidity(t *testing.T) {
	cc := &fakeVenue{
		source:   model.SourceCrossChainAccess,
		quoteErr: model.Unavailable(model.SourceCrossChainAccess, "market closed"),
	}
	mm := &fakeVenue{
		source:   model.SourceMarketMaker,
		quoteErr: model.Unavailable(model.SourceMarketMaker, "no open offers"),
	}
	client := newClient(cc, mm, nil)

	quotes, err := client.GetQuotes(context.Background(), request())
	require.NoError(t, err)
	assert.Nil(t, quotes.CrossChainAccess)
	assert.Nil(t, quotes.MarketMaker)

	_, err = client.Trade(context.Background(), request())
	var noLiq *routing.NoLiquidityError
	require.ErrorAs(t, err, &noLiq)
	assert.Contains(t, err.Error(), "market closed")
	assert.Contains(t, err.Error(), "no open offers")
	assert.Zero(t, cc.tradeCalls.Load())
	assert.Zero(t, mm.tradeCalls.Load())
}

func TestTrade_TransportFailureTreatedAsUnavailable(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, quoteErr: errors.New("connection refused")}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	client := newClient(cc, mm, nil)

	// Single-candidate short circuit, no price comparison needed.
	result, err := client.Trade(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, model.SourceMarketMaker, result.Source)
}

func TestTrade_AllPlatformsFailedAggregatesBothErrors(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120", tradeErr: errors.New("order rejected")}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100", tradeErr: errors.New("execution reverted")}
	client := newClient(cc, mm, nil)

	_, err := client.Trade(context.Background(), request())
	require.Error(t, err)

	var all *AllPlatformsFailedError
	require.ErrorAs(t, err, &all)
	assert.Equal(t, model.SourceCrossChainAccess, all.Primary)
	assert.Equal(t, model.SourceMarketMaker, all.Fallback)
	assert.Contains(t, err.Error(), "order rejected")
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestTrade_FirstStrategyFailsWhenAlternateAlsoUnavailable(t *testing.T) {
	cc := &fakeVenue{
		source:   model.SourceCrossChainAccess,
		quoteErr: model.Unavailable(model.SourceCrossChainAccess, "market closed"),
	}
	mm := &fakeVenue{
		source:   model.SourceMarketMaker,
		quoteErr: model.Unavailable(model.SourceMarketMaker, "no open offers"),
	}
	client := newClient(cc, mm, nil)

	_, err := client.TradeWithStrategy(context.Background(), request(), routing.StrategyCrossChainAccessFirst)
	require.Error(t, err)

	// Nothing was executed, so this is no-liquidity, not an execution
	// failure, and both venues' reasons are reported.
	var noLiq *routing.NoLiquidityError
	require.ErrorAs(t, err, &noLiq)
	assert.Equal(t, "market closed", noLiq.CrossChainAccessReason)
	assert.Equal(t, "no open offers", noLiq.MarketMakerReason)
	assert.Contains(t, err.Error(), "market closed")
	assert.Contains(t, err.Error(), "no open offers")
	assert.Zero(t, cc.tradeCalls.Load())
	assert.Zero(t, mm.tradeCalls.Load())
}

func TestGetQuotes_FetchesConcurrently(t *testing.T) {
	delay := 150 * time.Millisecond
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120", quoteDelay: delay}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100", quoteDelay: delay}
	client := newClient(cc, mm, nil)

	start := time.Now()
	quotes, err := client.GetQuotes(context.Background(), request())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, quotes.CrossChainAccess)
	require.NotNil(t, quotes.MarketMaker)
	// Bounded by the slower venue, not the sum.
	assert.Less(t, elapsed, 2*delay)
}

func TestTrade_UnknownStrategyRejected(t *testing.T) {
	cc := &fakeVenue{source: model.SourceCrossChainAccess, rate: "0.0120"}
	mm := &fakeVenue{source: model.SourceMarketMaker, rate: "0.0100"}
	client := newClient(cc, mm, nil)

	_, err := client.TradeWithStrategy(context.Background(), request(), routing.Strategy("CHEAPEST"))
	require.Error(t, err)
	assert.Zero(t, cc.quoteCalls.Load())
}

func TestAmountSpec_RoundTripWithinTolerance(t *testing.T) {
	// A BUY of X followed by a SELL of the received amount reproduces the
	// original spend at the same rate.
	rate := decimal.RequireFromString("0.011937")
	sell, buy, err := model.SellAmount(decimal.NewFromInt(1000)).Resolve(rate)
	require.NoError(t, err)

	backSell, backBuy, err := model.BuyAmount(buy).Resolve(rate)
	require.NoError(t, err)
	assert.True(t, backBuy.Equal(buy))

	tolerance := decimal.New(1, -12)
	assert.True(t, backSell.Sub(sell).Abs().LessThan(tolerance),
		"round trip drifted: %s vs %s", backSell, sell)
}
