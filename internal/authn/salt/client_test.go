package salt_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/salt"
	"github.com/stretchr/testify/require"
)

var testToken = domain.IdentityToken{
	Issuer:   "https://accounts.google.com",
	Audience: "client-abc",
	Subject:  "sub-42",
}

func saltServer(t *testing.T, handler http.HandlerFunc) *salt.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := salt.NewClient(srv.URL)
	c.MaxRetries = 2
	return c
}

func TestFetchSalt(t *testing.T) {
	t.Run("returns and caches the salt", func(t *testing.T) {
		var calls atomic.Int32
		want := []byte("sixteen-byte-salt")

		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/salt", r.URL.Path)

			var req struct {
				Issuer   string `json:"issuer"`
				Audience string `json:"audience"`
				Subject  string `json:"subject"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, testToken.Issuer, req.Issuer)
			require.Equal(t, testToken.Audience, req.Audience)
			require.Equal(t, testToken.Subject, req.Subject)

			_ = json.NewEncoder(w).Encode(map[string]string{
				"salt": base64.StdEncoding.EncodeToString(want),
			})
		})

		got, err := client.FetchSalt(context.Background(), testToken)
		require.NoError(t, err)
		require.Equal(t, want, got)

		// Second lookup for the same identity hits the cache.
		got, err = client.FetchSalt(context.Background(), testToken)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries transient failures up to the bound", func(t *testing.T) {
		var calls atomic.Int32
		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.FetchSalt(context.Background(), testToken)
		require.ErrorIs(t, err, salt.ErrUnavailable)
		// Initial attempt + MaxRetries.
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("recovers when a retry succeeds", func(t *testing.T) {
		var calls atomic.Int32
		want := []byte("salty")

		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"salt": base64.StdEncoding.EncodeToString(want),
			})
		})

		got, err := client.FetchSalt(context.Background(), testToken)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry a rejection", func(t *testing.T) {
		var calls atomic.Int32
		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := client.FetchSalt(context.Background(), testToken)
		require.ErrorIs(t, err, salt.ErrRejected)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("rejects an empty salt", func(t *testing.T) {
		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"salt": ""})
		})

		_, err := client.FetchSalt(context.Background(), testToken)
		require.ErrorIs(t, err, salt.ErrRejected)
	})

	t.Run("rejects undecodable salt", func(t *testing.T) {
		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"salt": "!!not-base64!!"})
		})

		_, err := client.FetchSalt(context.Background(), testToken)
		require.ErrorIs(t, err, salt.ErrRejected)
	})

	t.Run("distinct identities are cached separately", func(t *testing.T) {
		var calls atomic.Int32
		client := saltServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"salt": base64.StdEncoding.EncodeToString([]byte("s")),
			})
		})

		_, err := client.FetchSalt(context.Background(), testToken)
		require.NoError(t, err)

		other := testToken
		other.Subject = "sub-43"
		_, err = client.FetchSalt(context.Background(), other)
		require.NoError(t, err)

		require.Equal(t, int32(2), calls.Load())
	})
}
