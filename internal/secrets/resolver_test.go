package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	secrets map[string]map[string]string
	calls   int
}

func (f *fakeProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	f.calls++
	if m, ok := f.secrets[key]; ok {
		return m, nil
	}
	return nil, errors.New("not found")
}

type walletSecret struct {
	PrivateKey string
}

func parseWallet(m map[string]string) (walletSecret, error) {
	pk, ok := m["private_key"]
	if !ok {
		return walletSecret{}, errors.New("missing private_key")
	}
	return walletSecret{PrivateKey: pk}, nil
}

func TestResolver_ResolveAndCache(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"uat/rwa-router/wallet": {"private_key": "0xabc"},
	}}
	resolver := NewResolver[walletSecret](zap.NewNop(), "uat", "rwa-router", provider, NewCache[walletSecret](time.Minute))

	got, err := resolver.Resolve(context.Background(), "wallet", parseWallet)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.PrivateKey)

	// Second resolve hits the cache, not the provider.
	_, err = resolver.Resolve(context.Background(), "wallet", parseWallet)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestResolver_ParseFailureNotCached(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"uat/rwa-router/wallet": {"wrong_field": "x"},
	}}
	resolver := NewResolver[walletSecret](zap.NewNop(), "uat", "rwa-router", provider, NewCache[walletSecret](time.Minute))

	_, err := resolver.Resolve(context.Background(), "wallet", parseWallet)
	require.Error(t, err)

	_, err = resolver.Resolve(context.Background(), "wallet", parseWallet)
	require.Error(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("UAT_RWA_ROUTER_WALLET_PRIVATE_KEY", "0xdef")

	got, err := NewEnvProvider().GetSecret(context.Background(), "uat/rwa-router/wallet")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", got["private_key"])

	_, err = NewEnvProvider().GetSecret(context.Background(), "uat/rwa-router/missing")
	assert.Error(t, err)
}
