package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, env, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)
}

// EnvProvider reads secrets from environment variables. The secret name
// "uat/rwa-router/wallet" maps to the env prefix "UAT_RWA_ROUTER_WALLET_",
// so a map entry "private_key" comes from UAT_RWA_ROUTER_WALLET_PRIVATE_KEY.
// Used for local development where AWS Secrets Manager is not reachable.
type EnvProvider struct{}

func NewEnvProvider() Provider {
	return &EnvProvider{}
}

func (p *EnvProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	prefix := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_").Replace(key)) + "_"

	result := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(name, prefix))
		result[field] = value
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no environment variables with prefix [%s]", prefix)
	}
	return result, nil
}
