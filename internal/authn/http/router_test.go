package http_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/epoch"
	authhttp "github.com/farelight/zkauth/internal/authn/http"
	"github.com/farelight/zkauth/internal/authn/keyring"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/internal/authn/store/drivers/memory"
	"github.com/farelight/zkauth/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURI = "http://127.0.0.1:7171/callback"
	testIssuer      = "https://idp.example.com"
	testClientID    = "client-abc"
)

type stubSalts struct{ salt []byte }

func (s *stubSalts) FetchSalt(ctx context.Context, token domain.IdentityToken) ([]byte, error) {
	return s.salt, nil
}

type stubProver struct{ proof domain.ZkProof }

func (p *stubProver) RequestProof(ctx context.Context, token domain.IdentityToken, salt []byte,
	pub ed25519.PublicKey, maxEpoch uint64, keyClaimName string) (domain.ZkProof, error) {
	return p.proof, nil
}

type testServer struct {
	srv    *httptest.Server
	store  store.Store
	epochs *epoch.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("ZKAUTH_TEST_CLIENT_ID", testClientID)

	registry, err := provider.NewRegistry(domain.ProviderConfig{
		ID:                    "testidp",
		AuthorizationEndpoint: testIssuer + "/authorize",
		ClientIDEnvKey:        "ZKAUTH_TEST_CLIENT_ID",
		KeyClaimName:          "sub",
		SupportedNetworks:     []domain.Network{domain.NetworkDevnet},
	})
	require.NoError(t, err)

	epochs := epoch.NewManual(10)
	st := memory.NewStore()

	login := service.NewLoginService(registry,
		&keyring.Factory{Epochs: epochs},
		&stubSalts{salt: []byte("sixteen byte salt")},
		&stubProver{proof: domain.ZkProof{ProofBytes: []byte("p"), PublicInputDigest: []byte("d")}},
		st, epochs, testRedirectURI)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := authhttp.NewRouter("test", st, epochs, registry, logger)
	router.LoginService = login
	router.Signer = &service.TransactionSigner{Store: st, Epochs: epochs}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: st, epochs: epochs}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

// completeTestLogin drives the whole begin/callback cycle and returns the
// created session id.
func completeTestLogin(t *testing.T, ts *testServer) string {
	t.Helper()

	resp, body := ts.do(t, http.MethodPost, "/v1/login/begin",
		map[string]string{"provider": "testidp", "network": "devnet"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	authURL, err := url.Parse(body["authorization_url"].(string))
	require.NoError(t, err)
	nonce := authURL.Query().Get("nonce")
	require.NotEmpty(t, nonce)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   "sub-42",
		"nonce": nonce,
	})
	raw, err := token.SignedString([]byte("test-hmac-key"))
	require.NoError(t, err)

	redirect := testRedirectURI + "#" + url.Values{"id_token": {raw}}.Encode()
	resp, body = ts.do(t, http.MethodPost, "/v1/login/callback",
		map[string]string{"attempt_id": body["attempt_id"].(string), "redirect_url": redirect})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	return body["id"].(string)
}

func TestLoginEndpoints(t *testing.T) {
	ts := newTestServer(t)

	id := completeTestLogin(t, ts)

	// The finished session is visible and carries no key material.
	resp, body := ts.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "testidp", body["provider"])
	require.NotEmpty(t, body["address"])
	require.NotContains(t, body, "salt")
	require.NotContains(t, body, "private_key")
}

func TestLoginBegin_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/login/begin",
		map[string]string{"provider": "testidp", "network": "moonnet"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", body["error"])

	resp, body = ts.do(t, http.MethodPost, "/v1/login/begin",
		map[string]string{"provider": "nonesuch", "network": "devnet"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "unknown_provider", body["error"])
}

func TestLoginCallback_ProviderDenied(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/login/begin",
		map[string]string{"provider": "testidp", "network": "devnet"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/v1/login/callback", map[string]string{
		"attempt_id":   body["attempt_id"].(string),
		"redirect_url": testRedirectURI + "?error=access_denied",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "provider_denied", body["error"])

	// Unknown attempt after the failure consumed it.
	resp, body = ts.do(t, http.MethodPost, "/v1/login/callback", map[string]string{
		"attempt_id":   idx.New().String(),
		"redirect_url": testRedirectURI,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "unknown_attempt", body["error"])
}

func TestLoginCancel(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/v1/login/begin",
		map[string]string{"provider": "testidp", "network": "devnet"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attemptID := body["attempt_id"].(string)

	resp, _ = ts.do(t, http.MethodDelete, "/v1/login/"+attemptID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/v1/login/"+attemptID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	id := completeTestLogin(t, ts)

	resp, body := ts.do(t, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["sessions"], 1)

	t.Run("expired sessions disappear from reads", func(t *testing.T) {
		ts.epochs.Set(13) // past current 10 + validity 2
		resp, body := ts.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
		require.Equal(t, http.StatusGone, resp.StatusCode)
		require.Equal(t, "session_expired", body["error"])

		resp, body = ts.do(t, http.MethodGet, "/v1/sessions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, body["sessions"])
		ts.epochs.Set(10)
	})

	t.Run("revoke", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body := ts.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "session_not_found", body["error"])
	})
}

func TestSignEndpoint(t *testing.T) {
	ts := newTestServer(t)

	id := completeTestLogin(t, ts)
	payload := base64.StdEncoding.EncodeToString([]byte("transfer 10 to 0xdef"))

	resp, body := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/sign",
		map[string]string{"payload": payload})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["signature"])
	require.NotEmpty(t, body["proof"])
	require.NotEmpty(t, body["address"])
	require.Equal(t, testIssuer, body["issuer"])
	require.Equal(t, testClientID, body["audience"])

	// The signature verifies against the returned ephemeral public key.
	sig, err := base64.StdEncoding.DecodeString(body["signature"].(string))
	require.NoError(t, err)
	pub, err := base64.StdEncoding.DecodeString(body["ephemeral_public_key"].(string))
	require.NoError(t, err)
	require.True(t, ed25519.Verify(ed25519.PublicKey(pub), []byte("transfer 10 to 0xdef"), sig))

	t.Run("expired session refuses to sign", func(t *testing.T) {
		ts.epochs.Set(13)
		resp, body := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/sign",
			map[string]string{"payload": payload})
		require.Equal(t, http.StatusGone, resp.StatusCode)
		require.Equal(t, "session_expired", body["error"])
		ts.epochs.Set(10)
	})

	t.Run("garbage payload", func(t *testing.T) {
		resp, _ := ts.do(t, http.MethodPost, "/v1/sessions/"+id+"/sign",
			map[string]string{"payload": "not-base64!!"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestProvidersEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/v1/providers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	providers := body["providers"].([]any)
	require.Len(t, providers, 1)
	entry := providers[0].(map[string]any)
	require.Equal(t, "testidp", entry["id"])
	require.Equal(t, "sub", entry["key_claim_name"])
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "test", body["version"])

	resp, body = ts.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["uptime"])
}
