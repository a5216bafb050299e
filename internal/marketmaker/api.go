package marketmaker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

const offersPageLimit = 100

// APIError is a non-retryable offer API failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("offer api returned %d: %s", e.Status, e.Body)
}

// ErrorHandler classifies offer API 4xx responses for the HTTP executor.
func ErrorHandler(status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("offer api rejected the API key")
	}
	return &APIError{Status: status, Body: string(body)}
}

// APIClient talks to the offer discovery service.
type APIClient struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	base    string
	apiKey  string
	network model.Network
}

func NewAPIClient(logger *zap.Logger, exec *httpclient.Executor, baseURL, apiKey string, network model.Network) *APIClient {
	return &APIClient{
		logger:  logger,
		exec:    exec,
		base:    strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		network: network,
	}
}

// GetOffers lists open offers for the pair. buyAsset is what the taker
// receives (the maker's deposit asset), sellAsset what the taker pays.
// An empty result is not an error here; the selector decides liquidity.
func (c *APIClient) GetOffers(ctx context.Context, buyAsset, sellAsset string) ([]Offer, error) {
	params := url.Values{}
	params.Set("network", c.network.String())
	params.Set("page", "0")
	params.Set("limit", fmt.Sprintf("%d", offersPageLimit))
	if buyAsset != "" {
		params.Set("buyAssetAddress", strings.ToLower(buyAsset))
	}
	if sellAsset != "" {
		params.Set("sellAssetAddress", strings.ToLower(sellAsset))
	}

	reqURL := fmt.Sprintf("%s/dotc_offers?%s", c.base, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build offers request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	var resp offersResponse
	if err := c.exec.DoJSON(ctx, req, "market_maker.offers", &resp); err != nil {
		return nil, fmt.Errorf("fetch offers: %w", err)
	}

	c.logger.Debug("market_maker.offers_fetched",
		zap.Int("count", len(resp.Offers)),
		zap.String("buy_asset", buyAsset),
		zap.String("sell_asset", sellAsset),
	)
	return resp.Offers, nil
}
