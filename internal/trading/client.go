package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/swarm-collective/rwa-router/internal/metrics"
	"github.com/swarm-collective/rwa-router/internal/routing"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Venue is one execution platform: it quotes and settles trades.
type Venue interface {
	Source() model.Source
	GetQuote(ctx context.Context, req model.TradeRequest) (model.Quote, error)
	Trade(ctx context.Context, req model.TradeRequest) (model.TradeResult, error)
}

// Recorder persists settled trades and escrow incidents. May be nil.
type Recorder interface {
	RecordTrade(ctx context.Context, result model.TradeResult) error
	RecordEscrowIncident(ctx context.Context, incident model.EscrowIncidentEvent) error
}

// Publisher emits trade events. May be nil.
type Publisher interface {
	PublishTradeExecuted(ctx context.Context, result model.TradeResult) error
	PublishEscrowIncident(ctx context.Context, incident model.EscrowIncidentEvent) error
}

// AllPlatformsFailedError aggregates the primary and fallback execution
// failures. Distinct from NoLiquidity: execution was attempted here.
type AllPlatformsFailedError struct {
	Primary  model.Source
	Fallback model.Source
	Err      error
}

func (e *AllPlatformsFailedError) Error() string {
	return fmt.Sprintf("all platforms failed (primary %s, fallback %s): %v",
		e.Primary, e.Fallback, e.Err)
}

func (e *AllPlatformsFailedError) Unwrap() error { return e.Err }

// Quotes is the diagnostic dual-quote view. An unavailable venue maps to
// nil rather than an error.
type Quotes struct {
	MarketMaker      *model.Quote
	CrossChainAccess *model.Quote
}

// Client orchestrates the end-to-end trade flow: resolve the amount spec,
// quote both venues in parallel, route, execute, and fall back when the
// strategy permits.
type Client struct {
	logger      *zap.Logger
	router      *routing.Router
	crossChain  Venue
	marketMaker Venue
	store       Recorder
	publisher   Publisher
	strategy    routing.Strategy
}

// New wires the orchestrator. store and publisher are optional; the trade
// flow never fails because persistence or eventing failed.
func New(
	logger *zap.Logger,
	router *routing.Router,
	crossChain Venue,
	marketMaker Venue,
	store Recorder,
	publisher Publisher,
	defaultStrategy routing.Strategy,
) *Client {
	if defaultStrategy == "" {
		defaultStrategy = routing.StrategyBestPrice
	}
	return &Client{
		logger:      logger,
		router:      router,
		crossChain:  crossChain,
		marketMaker: marketMaker,
		store:       store,
		publisher:   publisher,
		strategy:    defaultStrategy,
	}
}

// GetQuotes fetches both venues concurrently and never fails for venue
// unavailability; it errors only on an invalid amount spec, before any
// network call.
func (c *Client) GetQuotes(ctx context.Context, req model.TradeRequest) (Quotes, error) {
	if err := req.Amount.Validate(); err != nil {
		return Quotes{}, err
	}

	cc, mm := c.fetchOptions(ctx, req)

	var quotes Quotes
	if cc.Available {
		quotes.CrossChainAccess = cc.Quote
	}
	if mm.Available {
		quotes.MarketMaker = mm.Quote
	}
	return quotes, nil
}

// Trade runs the full flow with the default strategy.
func (c *Client) Trade(ctx context.Context, req model.TradeRequest) (model.TradeResult, error) {
	return c.TradeWithStrategy(ctx, req, c.strategy)
}

// TradeWithStrategy runs the full flow: quote both venues in parallel,
// select per the strategy, execute, and fall back to the alternate venue
// when the primary execution fails, the strategy permits it, the alternate
// quoted as available, and the failure is not terminal.
func (c *Client) TradeWithStrategy(ctx context.Context, req model.TradeRequest, strategy routing.Strategy) (model.TradeResult, error) {
	if err := req.Amount.Validate(); err != nil {
		return model.TradeResult{}, err
	}
	if _, err := routing.ParseStrategy(string(strategy)); err != nil {
		return model.TradeResult{}, err
	}

	cc, mm := c.fetchOptions(ctx, req)

	selected, err := c.router.SelectPlatform(cc, mm, strategy, req.Amount.IsBuy())
	if err != nil {
		return model.TradeResult{}, err
	}

	// A selected option is always available; both venues down surfaces as
	// NoLiquidityError from the router above.
	result, primaryErr := c.execute(ctx, selected.Platform, req)
	if primaryErr == nil {
		return result, nil
	}

	other := optionFor(selected.Platform.Other(), cc, mm)
	if !strategy.AllowsFallback() || !other.Available || model.IsTerminalExecution(primaryErr) {
		return model.TradeResult{}, fmt.Errorf("%s execution failed: %w", selected.Platform, primaryErr)
	}

	metrics.FallbacksTotal.WithLabelValues(string(selected.Platform), string(other.Platform)).Inc()
	c.logger.Warn("trading.falling_back",
		zap.String("from", string(selected.Platform)),
		zap.String("to", string(other.Platform)),
		zap.Error(primaryErr),
	)

	result, fallbackErr := c.execute(ctx, other.Platform, req)
	if fallbackErr == nil {
		return result, nil
	}

	return model.TradeResult{}, &AllPlatformsFailedError{
		Primary:  selected.Platform,
		Fallback: other.Platform,
		Err:      multierr.Append(primaryErr, fallbackErr),
	}
}

// fetchOptions quotes both venues concurrently. Total latency is bounded by
// the slower venue, not the sum. Venue failures never abort the flow; they
// become unavailable options.
func (c *Client) fetchOptions(ctx context.Context, req model.TradeRequest) (cc, mm routing.PlatformOption) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cc = c.quoteOption(gctx, c.crossChain, req)
		return nil
	})
	g.Go(func() error {
		mm = c.quoteOption(gctx, c.marketMaker, req)
		return nil
	})
	_ = g.Wait()
	return cc, mm
}

func (c *Client) quoteOption(ctx context.Context, venue Venue, req model.TradeRequest) routing.PlatformOption {
	source := venue.Source()
	start := time.Now()
	quote, err := venue.GetQuote(ctx, req)
	metrics.ObserveDuration(metrics.QuoteDuration, start, string(source))

	if err == nil {
		metrics.IncQuoteRequest(string(source), "success")
		return routing.Candidate(quote)
	}

	if ue, ok := model.AsUnavailable(err); ok {
		metrics.IncQuoteRequest(string(source), "unavailable")
		c.logger.Info("trading.venue_unavailable",
			zap.String("venue", string(source)),
			zap.String("reason", ue.Reason),
		)
		return routing.Unavailable(source, ue.Reason)
	}

	// Transport or auth failure. Treated as unavailable for routing but
	// logged as an error, not ordinary unavailability.
	metrics.IncQuoteRequest(string(source), "error")
	c.logger.Error("trading.quote_failed",
		zap.String("venue", string(source)),
		zap.Error(err),
	)
	return routing.Unavailable(source, err.Error())
}

func (c *Client) execute(ctx context.Context, platform model.Source, req model.TradeRequest) (model.TradeResult, error) {
	venue := c.venueFor(platform)
	start := time.Now()
	result, err := venue.Trade(ctx, req)
	metrics.ObserveDuration(metrics.TradeDuration, start, string(platform))

	if err != nil {
		metrics.IncTrade(string(platform), "failure")
		c.recordEscrowIncident(ctx, err)
		return model.TradeResult{}, err
	}

	metrics.IncTrade(string(platform), "success")
	c.recordTrade(ctx, result)
	return result, nil
}

func (c *Client) venueFor(platform model.Source) Venue {
	if platform == model.SourceCrossChainAccess {
		return c.crossChain
	}
	return c.marketMaker
}

func optionFor(platform model.Source, cc, mm routing.PlatformOption) routing.PlatformOption {
	if platform == model.SourceCrossChainAccess {
		return cc
	}
	return mm
}

func (c *Client) recordTrade(ctx context.Context, result model.TradeResult) {
	if c.store != nil {
		if err := c.store.RecordTrade(ctx, result); err != nil {
			c.logger.Error("trading.record_trade_failed",
				zap.String("tx", result.TxHash), zap.Error(err))
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishTradeExecuted(ctx, result); err != nil {
			c.logger.Error("trading.publish_trade_failed",
				zap.String("tx", result.TxHash), zap.Error(err))
		}
	}
}

// recordEscrowIncident persists stranded-escrow failures for manual
// reconciliation. Phase 1 is never retried for these.
func (c *Client) recordEscrowIncident(ctx context.Context, err error) {
	var stranded *model.OrderSubmissionFailedAfterTransferError
	if !errors.As(err, &stranded) {
		return
	}

	metrics.EscrowIncidentsTotal.Inc()
	incident := model.EscrowIncidentEvent{
		TxHash:    stranded.TxHash,
		Symbol:    stranded.Symbol,
		Reason:    stranded.Err.Error(),
		Timestamp: time.Now().UTC(),
	}
	c.logger.Error("trading.escrow_incident",
		zap.String("tx", incident.TxHash),
		zap.String("symbol", incident.Symbol),
		zap.String("reason", incident.Reason),
	)

	if c.store != nil {
		if serr := c.store.RecordEscrowIncident(ctx, incident); serr != nil {
			c.logger.Error("trading.record_incident_failed", zap.Error(serr))
		}
	}
	if c.publisher != nil {
		if perr := c.publisher.PublishEscrowIncident(ctx, incident); perr != nil {
			c.logger.Error("trading.publish_incident_failed", zap.Error(perr))
		}
	}
}
