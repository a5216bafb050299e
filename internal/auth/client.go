package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
)

// MessageSigner signs plain-text login messages with the trading wallet key.
type MessageSigner interface {
	Address() string
	SignText(message string) (string, error)
}

type notFoundError struct{ status int }

func (e *notFoundError) Error() string { return fmt.Sprintf("auth service returned %d", e.status) }

// Client implements wallet-signature authentication against the platform
// auth service: check registration, fetch a nonce message, sign it, then
// login or register. Both venues accept the resulting bearer token.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	base   string
	signer MessageSigner
	cache  TokenCache
	now    func() time.Time
}

func NewClient(logger *zap.Logger, exec *httpclient.Executor, baseURL string, signer MessageSigner, cache TokenCache) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Client{
		logger: logger,
		exec:   exec,
		base:   strings.TrimRight(baseURL, "/"),
		signer: signer,
		cache:  cache,
		now:    time.Now,
	}
}

// ErrorHandler classifies auth service 4xx responses for the HTTP executor.
// 404 must surface as notFoundError so CheckExistence can distinguish an
// unregistered wallet from a real failure.
func ErrorHandler(status int, body []byte) error {
	if status == http.StatusNotFound {
		return &notFoundError{status: status}
	}
	return fmt.Errorf("auth service returned %d: %s", status, string(body))
}

type nonceEnvelope struct {
	Data struct {
		Attributes struct {
			Message string `json:"message"`
		} `json:"attributes"`
	} `json:"data"`
}

type loginEnvelope struct {
	Data struct {
		Attributes struct {
			AccessToken      string `json:"access_token"`
			RefreshToken     string `json:"refresh_token"`
			TokenType        string `json:"token_type"`
			ExpiresIn        int64  `json:"expires_in"`
			RefreshExpiresIn int64  `json:"refresh_expires_in"`
			Address          string `json:"address"`
		} `json:"attributes"`
	} `json:"data"`
}

// CheckExistence reports whether the wallet address is already registered.
func (c *Client) CheckExistence(ctx context.Context, address string) (bool, error) {
	url := fmt.Sprintf("%s/addresses/%s", c.base, strings.ToLower(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build existence request: %w", err)
	}

	err = c.exec.DoJSON(ctx, req, "auth", nil)
	if err != nil {
		var nf *notFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("check wallet existence: %w", err)
	}
	return true, nil
}

// Nonce requests the login message to sign. termsHash is only set when
// registering a new wallet.
func (c *Client) Nonce(ctx context.Context, address, termsHash string) (string, error) {
	attrs := map[string]any{"address": strings.ToLower(address)}
	if termsHash != "" {
		attrs["terms_hash"] = termsHash
	}
	payload := map[string]any{
		"data": map[string]any{
			"type":       "auth_nonce_request",
			"attributes": attrs,
		},
	}

	var out nonceEnvelope
	if err := c.post(ctx, "/nonce", payload, &out); err != nil {
		return "", fmt.Errorf("request nonce: %w", err)
	}
	if out.Data.Attributes.Message == "" {
		return "", fmt.Errorf("auth service returned empty nonce message")
	}
	return out.Data.Attributes.Message, nil
}

// Login exchanges a signed nonce for tokens.
func (c *Client) Login(ctx context.Context, address, signedMessage string) (TokenBundle, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "login_request",
			"attributes": map[string]any{
				"auth_pair": map[string]any{
					"address":        strings.ToLower(address),
					"signed_message": signedMessage,
				},
			},
		},
	}

	var out loginEnvelope
	if err := c.post(ctx, "/login", payload, &out); err != nil {
		return TokenBundle{}, fmt.Errorf("login: %w", err)
	}
	return c.bundle(address, out), nil
}

// Register creates a new platform account for the wallet.
func (c *Client) Register(ctx context.Context, address, signedMessage string) (TokenBundle, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "register",
			"attributes": map[string]any{
				"auth_pair": map[string]any{
					"address":        strings.ToLower(address),
					"signed_message": signedMessage,
				},
			},
		},
	}

	var out loginEnvelope
	if err := c.post(ctx, "/register", payload, &out); err != nil {
		return TokenBundle{}, fmt.Errorf("register: %w", err)
	}
	return c.bundle(address, out), nil
}

// Token returns a valid access token for the trading wallet, reusing the
// cached bundle when it has not expired and running the full signature flow
// otherwise.
func (c *Client) Token(ctx context.Context) (string, error) {
	address := c.signer.Address()

	if cached, ok, err := c.cache.Load(ctx, address); err == nil && ok && !cached.Expired(c.now()) {
		return cached.AccessToken, nil
	} else if err != nil {
		c.logger.Warn("auth.token_cache_load_failed", zap.Error(err))
	}

	tokens, err := c.Verify(ctx)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// Verify runs the complete flow: existence check, nonce, signature, then
// login or register, and caches the resulting bundle.
func (c *Client) Verify(ctx context.Context) (TokenBundle, error) {
	address := c.signer.Address()
	c.logger.Info("auth.verify_started", zap.String("address", address))

	exists, err := c.CheckExistence(ctx, address)
	if err != nil {
		return TokenBundle{}, err
	}

	termsHash := ""
	if !exists {
		termsHash = "Terms and Conditions"
	}
	message, err := c.Nonce(ctx, address, termsHash)
	if err != nil {
		return TokenBundle{}, err
	}

	signature, err := c.signer.SignText(message)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("sign login message: %w", err)
	}

	var tokens TokenBundle
	if exists {
		tokens, err = c.Login(ctx, address, signature)
	} else {
		tokens, err = c.Register(ctx, address, signature)
	}
	if err != nil {
		return TokenBundle{}, err
	}

	if err := c.cache.Save(ctx, address, tokens); err != nil {
		c.logger.Warn("auth.token_cache_save_failed", zap.Error(err))
	}

	c.logger.Info("auth.verify_succeeded",
		zap.String("address", address),
		zap.Time("expires_at", tokens.ExpiresAt))
	return tokens, nil
}

func (c *Client) bundle(address string, out loginEnvelope) TokenBundle {
	attrs := out.Data.Attributes
	now := c.now().UTC()
	resolved := attrs.Address
	if resolved == "" {
		resolved = strings.ToLower(address)
	}
	return TokenBundle{
		AccessToken:      attrs.AccessToken,
		RefreshToken:     attrs.RefreshToken,
		Address:          resolved,
		ExpiresAt:        now.Add(time.Duration(attrs.ExpiresIn) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(attrs.RefreshExpiresIn) * time.Second),
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.exec.DoJSON(ctx, req, "auth", out)
}
