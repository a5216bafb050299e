package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/auth"
	"github.com/swarm-collective/rwa-router/internal/chain"
	"github.com/swarm-collective/rwa-router/internal/config"
	"github.com/swarm-collective/rwa-router/internal/crosschain"
	"github.com/swarm-collective/rwa-router/internal/httpclient"
	"github.com/swarm-collective/rwa-router/internal/marketmaker"
	"github.com/swarm-collective/rwa-router/internal/metrics"
	"github.com/swarm-collective/rwa-router/internal/publisher"
	"github.com/swarm-collective/rwa-router/internal/rate"
	"github.com/swarm-collective/rwa-router/internal/remoteconfig"
	"github.com/swarm-collective/rwa-router/internal/routing"
	"github.com/swarm-collective/rwa-router/internal/secrets"
	"github.com/swarm-collective/rwa-router/internal/store"
	"github.com/swarm-collective/rwa-router/internal/trading"
	"github.com/swarm-collective/rwa-router/pkg/logger"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Version is set at build time.
var Version = "dev"

type walletSecret struct {
	PrivateKey string
}

type venueSecret struct {
	APIKey string
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	sellToken := flags.String("sell-token", "", "address of the token to spend")
	buyToken := flags.String("buy-token", "", "address of the token to acquire")
	symbol := flags.String("symbol", "", "stock ticker for the bridge venue (e.g. TSLA)")
	sellAmount := flags.String("sell-amount", "", "exact amount to spend")
	buyAmount := flags.String("buy-amount", "", "exact amount to acquire")
	strategy := flags.String("strategy", "", "routing strategy override")
	offerID := flags.String("offer-id", "", "offer id (cancel-offer)")
	_ = flags.Parse(os.Args[2:])

	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("starting rwa-router",
		zap.String("version", Version),
		zap.String("network", cfg.Network.String()),
		zap.String("strategy", cfg.Strategy),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	metrics.StartServer(cfg.MetricsAddr)

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer app.close()

	req := model.TradeRequest{
		SellToken: *sellToken,
		BuyToken:  *buyToken,
		Symbol:    *symbol,
		Amount:    amountSpec(*sellAmount, *buyAmount),
	}

	switch command {
	case "quotes":
		quotes, err := app.trader.GetQuotes(ctx, req)
		if err != nil {
			log.Fatal("quotes failed", zap.Error(err))
		}
		printJSON(quotes)

	case "trade":
		chosen := routing.Strategy(cfg.Strategy)
		if *strategy != "" {
			chosen = routing.Strategy(*strategy)
		}
		result, err := app.trader.TradeWithStrategy(ctx, req, chosen)
		if err != nil {
			log.Fatal("trade failed", zap.Error(err))
		}
		printJSON(result)

	case "cancel-offer":
		txHash, err := app.marketMaker.CancelOffer(ctx, *offerID)
		if err != nil {
			log.Fatal("cancel offer failed", zap.Error(err))
		}
		printJSON(map[string]string{"tx_hash": txHash})

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rwa-router <quotes|trade|cancel-offer> [flags]")
}

func amountSpec(sell, buy string) model.AmountSpec {
	var spec model.AmountSpec
	if sell != "" {
		if v, err := decimal.NewFromString(sell); err == nil {
			spec.Sell = &v
		}
	}
	if buy != "" {
		if v, err := decimal.NewFromString(buy); err == nil {
			spec.Buy = &v
		}
	}
	return spec
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// app bundles everything built at startup that needs closing on the way out.
type app struct {
	trader      *trading.Client
	marketMaker *marketmaker.Client
	wallet      *chain.Wallet
	nc          *nats.Conn
	db          store.Store
}

func (a *app) close() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.wallet != nil {
		a.wallet.Close()
	}
}

// chainGateway joins the token and offer book services into the single
// on-chain surface the Market Maker venue consumes.
type chainGateway struct {
	*chain.Tokens
	*chain.OfferBook
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	resolver, err := newSecretResolver(cfg, log)
	if err != nil {
		return nil, err
	}

	wallet, err := resolver.wallet(ctx)
	if err != nil {
		return nil, err
	}
	w, err := chain.Dial(ctx, log, cfg.RPCURL, wallet.PrivateKey, cfg.Network)
	if err != nil {
		return nil, err
	}

	tokens, err := chain.NewTokens(w)
	if err != nil {
		return nil, err
	}

	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: int(cfg.VenueRequestsPerSecond),
		Burst:             cfg.VenueRequestBurst,
	})
	exec := func(venueTag string, errorHandler func(int, []byte) error) *httpclient.Executor {
		return httpclient.New(log, rateMgr, httpClient(cfg.HTTPTimeout), cfg.HTTPRetryMax, venueTag, errorHandler)
	}

	// Contract addresses come from remote config when available, with
	// static env fallbacks for offline development.
	usdcAddr := cfg.USDCAddress
	offerBookAddr := cfg.OfferBookAddress
	escrow := func() (string, error) {
		return "", fmt.Errorf("no escrow address configured")
	}
	if cfg.RemoteConfigURL != "" {
		fetcher := remoteconfig.NewFetcher(log, exec("remote_config", nil), cfg.RemoteConfigURL)
		snap, err := fetcher.Load(ctx)
		if err != nil {
			return nil, err
		}
		fetcher.StartRefresher(ctx, cfg.RemoteConfigRefresh)

		if addr, err := snap.USDCAddress(cfg.Network); err == nil {
			usdcAddr = addr
		}
		if addr, err := snap.OfferBookAddress(cfg.Network); err == nil {
			offerBookAddr = addr
		}
		escrow = func() (string, error) {
			current, err := fetcher.Current()
			if err != nil {
				return "", err
			}
			return current.EscrowAddress, nil
		}
	}
	if usdcAddr == "" {
		return nil, fmt.Errorf("no USDC address for network %s", cfg.Network)
	}
	if offerBookAddr == "" {
		return nil, fmt.Errorf("no offer book address for network %s", cfg.Network)
	}

	offerBook, err := chain.NewOfferBook(w, offerBookAddr)
	if err != nil {
		return nil, err
	}

	// Platform auth shares the wallet key; tokens live in Redis when it is
	// configured so concurrent instances reuse one bundle.
	var tokenCache auth.TokenCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		tokenCache = auth.NewRedisCache(rdb, "")
	}
	authClient := auth.NewClient(log, exec("auth", auth.ErrorHandler), cfg.AuthBaseURL, w, tokenCache)

	mmSecret, err := resolver.marketMaker(ctx)
	if err != nil {
		return nil, err
	}
	mmAPI := marketmaker.NewAPIClient(log, exec("market_maker", marketmaker.ErrorHandler),
		cfg.MarketMakerBaseURL, mmSecret.APIKey, cfg.Network)
	mmClient := marketmaker.New(log, mmAPI, &chainGateway{tokens, offerBook}, cfg.Network, cfg.Slippage)

	ccAPI := crosschain.NewAPIClient(log, exec("cross_chain_access", crosschain.ErrorHandler),
		cfg.CrossChainBaseURL, authClient)
	ccClient := crosschain.New(log, ccAPI, tokens, crosschain.Config{
		Network:       cfg.Network,
		USDCAddress:   usdcAddr,
		WalletAddress: w.Address(),
		UserEmail:     cfg.UserEmail,
		Slippage:      cfg.Slippage,
	}, escrow)

	a := &app{marketMaker: mmClient, wallet: w}

	var recorder trading.Recorder
	if cfg.RedisAddr != "" {
		db, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          cfg.PGMaxConns,
			MinConns:          cfg.PGMinConns,
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, log)
		if err != nil {
			return nil, err
		}
		a.db = db
		recorder = db
	}

	var events trading.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		pub, err := publisher.New(log, nc, cfg.ServiceName, cfg.Network)
		if err != nil {
			return nil, err
		}
		a.nc = nc
		events = pub
	}

	a.trader = trading.New(log, routing.New(log), ccClient, mmClient,
		recorder, events, routing.Strategy(cfg.Strategy))
	return a, nil
}

type secretResolver struct {
	inner *secrets.Resolver[map[string]string]
}

// newSecretResolver picks AWS Secrets Manager outside dev and environment
// variables locally. Secret names follow {env}/{service}/{name}.
func newSecretResolver(cfg *config.Config, log *zap.Logger) (*secretResolver, error) {
	var provider secrets.Provider
	if cfg.Env == "dev" {
		provider = secrets.NewEnvProvider()
	} else {
		p, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	cache := secrets.NewCache[map[string]string](cfg.SecretCacheTTL)
	return &secretResolver{
		inner: secrets.NewResolver(log, cfg.Env, cfg.ServiceName, provider, cache),
	}, nil
}

func (r *secretResolver) wallet(ctx context.Context) (walletSecret, error) {
	m, err := r.inner.Resolve(ctx, "wallet", func(m map[string]string) (map[string]string, error) {
		if m["private_key"] == "" {
			return nil, fmt.Errorf("wallet secret missing private_key")
		}
		return m, nil
	})
	if err != nil {
		return walletSecret{}, err
	}
	return walletSecret{PrivateKey: m["private_key"]}, nil
}

func (r *secretResolver) marketMaker(ctx context.Context) (venueSecret, error) {
	m, err := r.inner.Resolve(ctx, "market-maker", func(m map[string]string) (map[string]string, error) {
		if m["api_key"] == "" {
			return nil, fmt.Errorf("market maker secret missing api_key")
		}
		return m, nil
	})
	if err != nil {
		return venueSecret{}, err
	}
	return venueSecret{APIKey: m["api_key"]}, nil
}
