// Package salt fetches the per-identity secret from the external salt
// service. The salt is what unlinks a derived address from the raw OAuth
// subject; losing it is losing the address, so results are cached for the
// life of the process and never regenerated implicitly.
package salt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/pkg/slogx"
)

var (
	// ErrRejected is a definitive 4xx from the salt service. Terminal; the
	// identity is not provisioned or the request was malformed.
	ErrRejected = errors.New("salt: request rejected")

	// ErrUnavailable means the bounded retries against a flaky service were
	// exhausted.
	ErrUnavailable = errors.New("salt: service unavailable")
)

// DefaultTimeout suits a simple keyed lookup. Never reuse this for the
// prover, which needs tens of seconds.
const DefaultTimeout = 2 * time.Second

// DefaultMaxRetries bounds retries of transient failures.
const DefaultMaxRetries = 3

type cacheKey struct {
	issuer, audience, subject string
}

// Client talks to the salt service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64

	mu    sync.Mutex
	cache map[cacheKey][]byte
}

// NewClient builds a salt client with the default short timeout and retry
// bound.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
		cache:      make(map[cacheKey][]byte),
	}
}

type saltRequest struct {
	Issuer   string `json:"issuer"`
	Audience string `json:"audience"`
	Subject  string `json:"subject"`
}

type saltResponse struct {
	Salt string `json:"salt"`
}

// FetchSalt returns the salt for the token's (issuer, audience, subject)
// triple. Transient failures (network, 5xx) are retried with exponential
// backoff up to MaxRetries; a 4xx is terminal. Successful lookups are cached
// so repeated logins of the same identity cost one call.
func (c *Client) FetchSalt(ctx context.Context, token domain.IdentityToken) ([]byte, error) {
	key := cacheKey{issuer: token.Issuer, audience: token.Audience, subject: token.Subject}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	log := slogx.FromContext(ctx)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.MaxRetries), ctx)

	salt, err := backoff.RetryWithData(func() ([]byte, error) {
		return c.fetch(ctx, token)
	}, policy)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return nil, err
		}
		log.Warn("salt fetch gave up", "issuer", token.Issuer, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	c.cache[key] = salt
	c.mu.Unlock()

	return salt, nil
}

func (c *Client) fetch(ctx context.Context, token domain.IdentityToken) ([]byte, error) {
	body, err := json.Marshal(saltRequest{
		Issuer:   token.Issuer,
		Audience: token.Audience,
		Subject:  token.Subject,
	})
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/salt", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err // network failure, retryable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decoding
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
	default:
		return nil, fmt.Errorf("salt: status %d", resp.StatusCode)
	}

	var decoded saltResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: undecodable response: %v", ErrRejected, err))
	}

	raw, err := base64.StdEncoding.DecodeString(decoded.Salt)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: salt is not base64: %v", ErrRejected, err))
	}
	if len(raw) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("%w: empty salt", ErrRejected))
	}

	return raw, nil
}
