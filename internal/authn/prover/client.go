// Package prover submits the identity token, salt and ephemeral public key
// to the external zero-knowledge proving service. The proof it returns is
// only valid for exactly that input tuple; the caller must never substitute
// any of the inputs afterwards.
package prover

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/pkg/slogx"
)

var (
	// ErrProofFailed means the service definitively rejected the inputs.
	// Not retryable; retrying the same inputs cannot succeed.
	ErrProofFailed = errors.New("prover: proof generation failed")

	// ErrProofTimeout means the request exceeded its deadline. A timeout is
	// not evidence of invalid input, so it is surfaced distinctly; the
	// caller decides whether to start over.
	ErrProofTimeout = errors.New("prover: proof generation timed out")

	// ErrUnavailable means transient failures outlasted the retry bound.
	ErrUnavailable = errors.New("prover: service unavailable")
)

// DefaultTimeout is deliberately generous: proving takes seconds to tens of
// seconds depending on the proving system. Do not share a timeout with the
// salt lookup.
const DefaultTimeout = 45 * time.Second

// DefaultMaxRetries bounds retries of failures the service flags transient.
const DefaultMaxRetries = 2

// Client talks to the proving service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
}

// NewClient builds a prover client with the default long timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
	}
}

type proofRequest struct {
	JWT                string `json:"jwt"`
	Salt               string `json:"salt"`
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	MaxEpoch           uint64 `json:"max_epoch"`
	KeyClaimName       string `json:"key_claim_name"`
}

type proofResponse struct {
	Proof             string `json:"proof"`
	PublicInputDigest string `json:"public_input_digest"`

	// Error fields, present when proving failed.
	Error     string `json:"error,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

// RequestProof sends the five proof inputs verbatim and returns the opaque
// proof plus public-input digest. Failures flagged transient by the service
// are retried up to MaxRetries; anything else is terminal. A cancelled
// context abandons the request; the result is simply discarded server-side.
func (c *Client) RequestProof(
	ctx context.Context,
	token domain.IdentityToken,
	salt []byte,
	ephemeralPublicKey ed25519.PublicKey,
	maxEpoch uint64,
	keyClaimName string,
) (domain.ZkProof, error) {
	log := slogx.FromContext(ctx)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.MaxRetries), ctx)

	started := time.Now()
	proof, err := backoff.RetryWithData(func() (domain.ZkProof, error) {
		return c.prove(ctx, token, salt, ephemeralPublicKey, maxEpoch, keyClaimName)
	}, policy)
	if err != nil {
		if isTimeout(ctx, err) {
			return domain.ZkProof{}, fmt.Errorf("%w after %s", ErrProofTimeout, time.Since(started).Round(time.Millisecond))
		}
		if errors.Is(err, ErrProofFailed) {
			return domain.ZkProof{}, err
		}
		return domain.ZkProof{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Debug("proof generated", "duration_ms", time.Since(started).Milliseconds())
	return proof, nil
}

func (c *Client) prove(
	ctx context.Context,
	token domain.IdentityToken,
	salt []byte,
	ephemeralPublicKey ed25519.PublicKey,
	maxEpoch uint64,
	keyClaimName string,
) (domain.ZkProof, error) {
	body, err := json.Marshal(proofRequest{
		JWT:                token.Raw,
		Salt:               base64.StdEncoding.EncodeToString(salt),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(ephemeralPublicKey),
		MaxEpoch:           maxEpoch,
		KeyClaimName:       keyClaimName,
	})
	if err != nil {
		return domain.ZkProof{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/prove", bytes.NewReader(body))
	if err != nil {
		return domain.ZkProof{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Timeouts are not retried; the budget is already generous.
		if isTimeout(ctx, err) {
			return domain.ZkProof{}, backoff.Permanent(err)
		}
		return domain.ZkProof{}, err
	}
	defer resp.Body.Close()

	var decoded proofResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<22)).Decode(&decoded); err != nil {
		if resp.StatusCode >= 500 {
			return domain.ZkProof{}, fmt.Errorf("prover: status %d", resp.StatusCode)
		}
		return domain.ZkProof{}, backoff.Permanent(fmt.Errorf("%w: undecodable response: %v", ErrProofFailed, err))
	}

	if decoded.Error != "" || resp.StatusCode >= 400 {
		if decoded.Transient {
			return domain.ZkProof{}, fmt.Errorf("prover: transient: %s", decoded.Error)
		}
		return domain.ZkProof{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrProofFailed, decoded.Error))
	}

	proofBytes, err := base64.StdEncoding.DecodeString(decoded.Proof)
	if err != nil || len(proofBytes) == 0 {
		return domain.ZkProof{}, backoff.Permanent(fmt.Errorf("%w: invalid proof payload", ErrProofFailed))
	}
	digest, err := base64.StdEncoding.DecodeString(decoded.PublicInputDigest)
	if err != nil || len(digest) == 0 {
		return domain.ZkProof{}, backoff.Permanent(fmt.Errorf("%w: invalid public input digest", ErrProofFailed))
	}

	return domain.ZkProof{ProofBytes: proofBytes, PublicInputDigest: digest}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
