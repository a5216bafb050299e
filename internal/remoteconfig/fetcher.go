package remoteconfig

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Snapshot is an immutable view of the remotely managed contract addresses.
// Fields are read-only after construction; Fetcher swaps whole snapshots.
type Snapshot struct {
	Version       string            `json:"version"`
	EscrowAddress string            `json:"escrowAddress"`
	OfferBook     map[string]string `json:"offerBook"`
	USDCAddresses map[string]string `json:"usdcAddresses"`
	FetchedAt     time.Time         `json:"-"`
}

// OfferBookAddress returns the offer book contract address for a network.
func (s *Snapshot) OfferBookAddress(network model.Network) (string, error) {
	if addr, ok := s.OfferBook[fmt.Sprintf("%d", network.ChainID())]; ok {
		return addr, nil
	}
	return "", fmt.Errorf("no offer book address for network %s", network)
}

// USDCAddress returns the USDC token address for a network.
func (s *Snapshot) USDCAddress(network model.Network) (string, error) {
	if addr, ok := s.USDCAddresses[fmt.Sprintf("%d", network.ChainID())]; ok {
		return addr, nil
	}
	return "", fmt.Errorf("no usdc address for network %s", network)
}

// Fetcher loads contract address configuration from a remote JSON document
// and refreshes it periodically. Reads always return the last good snapshot,
// so a transient fetch failure never blanks out addresses mid-flight.
type Fetcher struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	url    string

	mu       sync.RWMutex
	snapshot *Snapshot
}

func NewFetcher(logger *zap.Logger, exec *httpclient.Executor, url string) *Fetcher {
	return &Fetcher{
		logger: logger,
		exec:   exec,
		url:    strings.TrimRight(url, "/"),
	}
}

// Load fetches the document and installs it as the current snapshot.
func (f *Fetcher) Load(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build remote config request: %w", err)
	}

	var snap Snapshot
	if err := f.exec.DoJSON(ctx, req, "remote_config", &snap); err != nil {
		return nil, fmt.Errorf("fetch remote config: %w", err)
	}
	if snap.EscrowAddress == "" {
		return nil, fmt.Errorf("remote config missing escrow address")
	}
	snap.FetchedAt = time.Now().UTC()

	f.mu.Lock()
	f.snapshot = &snap
	f.mu.Unlock()

	f.logger.Info("remoteconfig.loaded",
		zap.String("version", snap.Version),
		zap.Int("offer_books", len(snap.OfferBook)),
	)
	return &snap, nil
}

// Current returns the last good snapshot, or an error if none was ever loaded.
func (f *Fetcher) Current() (*Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.snapshot == nil {
		return nil, fmt.Errorf("remote config not loaded")
	}
	return f.snapshot, nil
}

// StartRefresher reloads the snapshot on an interval until ctx is canceled.
// Failures keep the previous snapshot in place.
func (f *Fetcher) StartRefresher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := f.Load(ctx); err != nil {
					f.logger.Warn("remoteconfig.refresh_failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
