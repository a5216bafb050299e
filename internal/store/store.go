package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/pkg/model"
	"github.com/swarm-collective/rwa-router/pkg/utils"
)

const lastTradeTTL = 24 * time.Hour

// Store persists settled trades and escrow incidents, with a Redis cache
// for the most recent trade per network.
type Store interface {
	RecordTrade(ctx context.Context, result model.TradeResult) error
	RecordEscrowIncident(ctx context.Context, incident model.EscrowIncidentEvent) error
	LastTrade(ctx context.Context, network model.Network) (*model.TradeResult, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore is Redis-first with optional Postgres durability. Postgres
// being absent degrades writes to cache-only, never to failure.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. pgURL may be
// empty to run cache-only.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info("store.pg_connected", zap.String("dsn", utils.MaskDSN(pgURL)))
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

func lastTradeKey(network model.Network) string {
	return fmt.Sprintf("trade:last:%s", network)
}

// RecordTrade inserts an immutable trade row and caches it as the most
// recent trade for its network. A cache failure is logged, not returned.
func (s *HybridStore) RecordTrade(ctx context.Context, result model.TradeResult) error {
	if err := s.SetJSON(ctx, lastTradeKey(result.Network), result, lastTradeTTL); err != nil {
		s.logger.Warn("store.redis.cache_trade_failed",
			zap.String("tx", result.TxHash), zap.Error(err))
	}

	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO trading.trade (
			tx_hash, order_id, sell_token, sell_amount,
			buy_token, buy_amount, rate, source, network, executed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash) DO NOTHING
	`, result.TxHash, result.OrderID, result.SellToken, result.SellAmount,
		result.BuyToken, result.BuyAmount, result.Rate,
		string(result.Source), result.Network.ChainID(), result.Timestamp)
	if err != nil {
		s.logger.Error("store.pg.insert_trade_failed",
			zap.String("tx", result.TxHash), zap.Error(err))
	}
	return err
}

// RecordEscrowIncident inserts a stranded-escrow row for manual
// reconciliation.
func (s *HybridStore) RecordEscrowIncident(ctx context.Context, incident model.EscrowIncidentEvent) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO trading.escrow_incident (tx_hash, symbol, reason, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tx_hash) DO NOTHING
	`, incident.TxHash, incident.Symbol, incident.Reason, incident.Timestamp)
	if err != nil {
		s.logger.Error("store.pg.insert_incident_failed",
			zap.String("tx", incident.TxHash), zap.Error(err))
	}
	return err
}

// LastTrade returns the most recent cached trade for the network, or nil
// when none is cached.
func (s *HybridStore) LastTrade(ctx context.Context, network model.Network) (*model.TradeResult, error) {
	var result model.TradeResult
	err := s.GetJSON(ctx, lastTradeKey(network), &result)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
