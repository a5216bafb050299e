package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/pkg/model"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &HybridStore{redis: rdb, logger: zap.NewNop()}, mr
}

func sampleTrade() model.TradeResult {
	return model.TradeResult{
		TxHash:     "0xabc",
		OrderID:    "ord-1",
		SellToken:  "0xusdc",
		SellAmount: decimal.NewFromInt(1000),
		BuyToken:   "0xtsla",
		BuyAmount:  decimal.NewFromInt(5),
		Rate:       decimal.RequireFromString("0.005"),
		Source:     model.SourceCrossChainAccess,
		Timestamp:  time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC),
		Network:    model.NetworkPolygon,
	}
}

func TestHealthCheck_Success(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheck_RedisNil(t *testing.T) {
	store := &HybridStore{redis: nil}
	err := store.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &HybridStore{redis: rdb}

	mr.Close()

	err = store.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRecordTrade_NilPGCachesOnly(t *testing.T) {
	store, _ := newTestStore(t)
	trade := sampleTrade()

	require.NoError(t, store.RecordTrade(context.Background(), trade))

	cached, err := store.LastTrade(context.Background(), model.NetworkPolygon)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, trade.TxHash, cached.TxHash)
	assert.True(t, cached.Rate.Equal(trade.Rate))
}

func TestRecordEscrowIncident_NilPG(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.RecordEscrowIncident(context.Background(), model.EscrowIncidentEvent{
		TxHash: "0xdef",
		Symbol: "TSLA",
		Reason: "order rejected",
	})
	require.NoError(t, err)
}

func TestLastTrade_Empty(t *testing.T) {
	store, _ := newTestStore(t)

	cached, err := store.LastTrade(context.Background(), model.NetworkEthereum)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestLastTrade_InvalidJSON(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("trade:last:polygon", "not-json"))

	cached, err := store.LastTrade(context.Background(), model.NetworkPolygon)
	assert.Nil(t, cached)
	assert.Error(t, err)
}

func TestSetGetJSON_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.SetJSON(ctx, "test:key", map[string]string{"a": "b"}, time.Minute))

	var dest map[string]string
	require.NoError(t, store.GetJSON(ctx, "test:key", &dest))
	assert.Equal(t, "b", dest["a"])
}

func TestGetJSON_KeyNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	var dest map[string]string
	err := store.GetJSON(context.Background(), "nonexistent:key", &dest)
	assert.Error(t, err)
}

func TestClose_NilComponents(t *testing.T) {
	store := &HybridStore{}
	require.NoError(t, store.Close())
}

func TestNewHybrid_DefaultsLogger(t *testing.T) {
	mr := miniredis.RunT(t)

	st, err := NewHybrid(mr.Addr(), 0, "", PGPoolConfig{}, nil)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, st.Close())
}

func TestNewHybrid_InvalidRedis(t *testing.T) {
	_, err := NewHybrid("localhost:1", 0, "", PGPoolConfig{}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewHybrid_InvalidPGURL(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := NewHybrid(mr.Addr(), 0, "not-a-valid-pg-url", PGPoolConfig{}, zap.NewNop())
	assert.Error(t, err)
}
