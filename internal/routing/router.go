package routing

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/metrics"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Strategy controls venue selection and fallback eligibility.
type Strategy string

const (
	StrategyBestPrice             Strategy = "BEST_PRICE"
	StrategyCrossChainAccessFirst Strategy = "CROSS_CHAIN_ACCESS_FIRST"
	StrategyMarketMakerFirst      Strategy = "MARKET_MAKER_FIRST"
	StrategyCrossChainAccessOnly  Strategy = "CROSS_CHAIN_ACCESS_ONLY"
	StrategyMarketMakerOnly       Strategy = "MARKET_MAKER_ONLY"
)

// ParseStrategy validates a strategy string from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyBestPrice, StrategyCrossChainAccessFirst, StrategyMarketMakerFirst,
		StrategyCrossChainAccessOnly, StrategyMarketMakerOnly:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown routing strategy %q", s)
}

// AllowsFallback reports whether a failed execution may retry on the other
// venue. The single-venue strategies never fall back.
func (s Strategy) AllowsFallback() bool {
	switch s {
	case StrategyCrossChainAccessOnly, StrategyMarketMakerOnly:
		return false
	}
	return true
}

// PlatformOption is one venue's candidacy for a trade: a quote when the
// venue is available, or the reason it is not.
type PlatformOption struct {
	Platform  model.Source
	Quote     *model.Quote
	Available bool
	Reason    string
}

// Candidate wraps an available quote into an option.
func Candidate(quote model.Quote) PlatformOption {
	return PlatformOption{
		Platform:  quote.Source,
		Quote:     &quote,
		Available: true,
	}
}

// Unavailable builds an option for a venue that cannot serve this trade.
func Unavailable(source model.Source, reason string) PlatformOption {
	if reason == "" {
		reason = "unavailable"
	}
	return PlatformOption{Platform: source, Reason: reason}
}

// NoLiquidityError means no venue could serve the trade before execution
// was ever attempted. Both venues' reasons are carried so callers can show
// actionable diagnostics.
type NoLiquidityError struct {
	CrossChainAccessReason string
	MarketMakerReason      string
}

func (e *NoLiquidityError) Error() string {
	return fmt.Sprintf("no liquidity: cross_chain_access: %s; market_maker: %s",
		e.CrossChainAccessReason, e.MarketMakerReason)
}

// Router selects the venue for a trade. Pure decision logic, no I/O.
type Router struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Router {
	return &Router{logger: logger}
}

// SelectPlatform picks one option per the strategy. The returned option is
// always available: when neither venue can serve the trade, every strategy
// fails with NoLiquidityError carrying both reasons.
//
// The *_FIRST strategies fall through to the alternate venue when the
// preferred one is unavailable. BEST_PRICE compares rates (buy-per-sell):
// the higher rate wins for either direction since it yields more output per
// unit of input. Equal rates resolve to Market Maker.
func (r *Router) SelectPlatform(cc, mm PlatformOption, strategy Strategy, isBuy bool) (PlatformOption, error) {
	selected, err := r.decide(cc, mm, strategy)
	if err != nil {
		metrics.RoutingDecisionsTotal.WithLabelValues(string(strategy), "none").Inc()
		r.logger.Warn("routing.no_liquidity",
			zap.String("strategy", string(strategy)),
			zap.String("cross_chain_access", cc.Reason),
			zap.String("market_maker", mm.Reason),
		)
		return PlatformOption{}, err
	}

	metrics.RoutingDecisionsTotal.WithLabelValues(string(strategy), string(selected.Platform)).Inc()
	r.logger.Info("routing.platform_selected",
		zap.String("strategy", string(strategy)),
		zap.String("platform", string(selected.Platform)),
		zap.Bool("is_buy", isBuy),
	)
	return selected, nil
}

func (r *Router) decide(cc, mm PlatformOption, strategy Strategy) (PlatformOption, error) {
	noLiquidity := &NoLiquidityError{
		CrossChainAccessReason: reasonOf(cc),
		MarketMakerReason:      reasonOf(mm),
	}

	// Both venues down fails every strategy the same way, before any
	// strategy-specific branching.
	if !cc.Available && !mm.Available {
		return PlatformOption{}, noLiquidity
	}

	switch strategy {
	case StrategyCrossChainAccessOnly:
		if cc.Available {
			return cc, nil
		}
		return PlatformOption{}, noLiquidity

	case StrategyMarketMakerOnly:
		if mm.Available {
			return mm, nil
		}
		return PlatformOption{}, noLiquidity

	case StrategyCrossChainAccessFirst:
		if cc.Available {
			return cc, nil
		}
		return mm, nil

	case StrategyMarketMakerFirst:
		if mm.Available {
			return mm, nil
		}
		return cc, nil

	case StrategyBestPrice:
		switch {
		case cc.Available && mm.Available:
			// Rate is buy-per-sell, so the higher rate yields more of the
			// buy token for the same spend. Ties go to Market Maker.
			if cc.Quote.Rate.GreaterThan(mm.Quote.Rate) {
				return cc, nil
			}
			return mm, nil
		case cc.Available:
			return cc, nil
		default:
			return mm, nil
		}
	}

	return PlatformOption{}, fmt.Errorf("unknown routing strategy %q", strategy)
}

func reasonOf(opt PlatformOption) string {
	if opt.Available {
		return "available"
	}
	if opt.Reason == "" {
		return "unavailable"
	}
	return opt.Reason
}
