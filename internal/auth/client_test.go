package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarm-collective/rwa-router/internal/httpclient"
)

type fakeSigner struct {
	address string
	signed  string
	calls   int32
}

func (s *fakeSigner) Address() string { return s.address }

func (s *fakeSigner) SignText(message string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.signed, nil
}

const walletAddr = "0xAbCd000000000000000000000000000000000001"

func tokenResponse(access string) string {
	return fmt.Sprintf(`{"data":{"attributes":{
		"access_token":%q,
		"refresh_token":"refresh-1",
		"token_type":"Bearer",
		"expires_in":300,
		"refresh_expires_in":86400
	}}}`, access)
}

func newAuthServer(t *testing.T, registered bool) (*httptest.Server, *map[string]int) {
	t.Helper()
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.Method+" "+r.URL.Path]++
		switch {
		case r.Method == http.MethodGet:
			if registered {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.URL.Path == "/nonce":
			var body struct {
				Data struct {
					Attributes map[string]any `json:"attributes"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body.Data.Attributes["address"])
			_, _ = w.Write([]byte(`{"data":{"attributes":{"message":"sign me please"}}}`))
		case r.URL.Path == "/login":
			_, _ = w.Write([]byte(tokenResponse("access-login")))
		case r.URL.Path == "/register":
			_, _ = w.Write([]byte(tokenResponse("access-register")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newAuthClient(t *testing.T, baseURL string, signer MessageSigner) *Client {
	t.Helper()
	exec := httpclient.New(zap.NewNop(), nil, &http.Client{Timeout: 5 * time.Second}, 1, "auth", ErrorHandler)
	return NewClient(zap.NewNop(), exec, baseURL, signer, NewMemoryCache())
}

func TestVerify_RegisteredWalletLogsIn(t *testing.T) {
	srv, hits := newAuthServer(t, true)
	signer := &fakeSigner{address: walletAddr, signed: "0xsig"}
	client := newAuthClient(t, srv.URL, signer)

	tokens, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-login", tokens.AccessToken)
	assert.False(t, tokens.Expired(time.Now()))
	assert.Equal(t, 1, (*hits)["POST /login"])
	assert.Zero(t, (*hits)["POST /register"])
}

func TestVerify_UnknownWalletRegisters(t *testing.T) {
	srv, hits := newAuthServer(t, false)
	signer := &fakeSigner{address: walletAddr, signed: "0xsig"}
	client := newAuthClient(t, srv.URL, signer)

	tokens, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-register", tokens.AccessToken)
	assert.Equal(t, 1, (*hits)["POST /register"])
	assert.Zero(t, (*hits)["POST /login"])
}

func TestToken_ReusesCachedBundle(t *testing.T) {
	srv, _ := newAuthServer(t, true)
	signer := &fakeSigner{address: walletAddr, signed: "0xsig"}
	client := newAuthClient(t, srv.URL, signer)

	first, err := client.Token(context.Background())
	require.NoError(t, err)

	second, err := client.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&signer.calls))
}

func TestToken_ExpiredBundleTriggersReverify(t *testing.T) {
	srv, _ := newAuthServer(t, true)
	signer := &fakeSigner{address: walletAddr, signed: "0xsig"}
	client := newAuthClient(t, srv.URL, signer)

	_, err := client.Token(context.Background())
	require.NoError(t, err)

	// Move the clock past the access token expiry.
	client.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = client.Token(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&signer.calls))
}
