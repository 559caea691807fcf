package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/flow"
	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/internal/authn/prover"
	"github.com/farelight/zkauth/internal/authn/salt"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/httpx"
)

// SessionResponse is the external view of a session. Private key and salt
// never leave the daemon.
type SessionResponse struct {
	ID                 string    `json:"id"`
	Provider           string    `json:"provider"`
	Network            string    `json:"network"`
	Address            string    `json:"address"`
	EphemeralPublicKey string    `json:"ephemeral_public_key"`
	MaxEpoch           uint64    `json:"max_epoch"`
	CreatedAt          time.Time `json:"created_at"`
}

func toSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:                 s.ID.String(),
		Provider:           s.Provider,
		Network:            string(s.Network),
		Address:            string(s.Address),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(s.KeyPair.PublicKey),
		MaxEpoch:           s.MaxEpoch,
		CreatedAt:          s.CreatedAt,
	}
}

// writeServiceError maps pipeline errors onto HTTP statuses and the shared
// error body shape.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider):
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", err.Error())
	case errors.Is(err, service.ErrUnsupportedNetwork):
		httpx.WriteError(w, http.StatusBadRequest, "unsupported_network", err.Error())
	case errors.Is(err, service.ErrUnknownAttempt):
		httpx.WriteError(w, http.StatusNotFound, "unknown_attempt", err.Error())
	case errors.Is(err, service.ErrNonceReused):
		httpx.WriteError(w, http.StatusConflict, "nonce_reused", err.Error())
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, service.ErrSessionExpired), errors.Is(err, store.ErrExpired):
		httpx.WriteError(w, http.StatusGone, "session_expired", err.Error())
	case errors.Is(err, service.ErrEmptyPayload):
		httpx.WriteError(w, http.StatusBadRequest, "empty_payload", err.Error())
	case errors.Is(err, flow.ErrNonceMismatch):
		httpx.WriteError(w, http.StatusUnauthorized, "nonce_mismatch", err.Error())
	case errors.Is(err, flow.ErrProviderDenied):
		httpx.WriteError(w, http.StatusUnauthorized, "provider_denied", err.Error())
	case errors.Is(err, flow.ErrMalformedToken):
		httpx.WriteError(w, http.StatusBadRequest, "malformed_token", err.Error())
	case errors.Is(err, flow.ErrInvalidState):
		httpx.WriteError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, salt.ErrRejected):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "salt_rejected", err.Error())
	case errors.Is(err, salt.ErrUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "salt_unavailable", err.Error())
	case errors.Is(err, prover.ErrProofFailed):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "proof_failed", err.Error())
	case errors.Is(err, prover.ErrProofTimeout):
		httpx.WriteError(w, http.StatusGatewayTimeout, "proof_timeout", err.Error())
	case errors.Is(err, prover.ErrUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "prover_unavailable", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
