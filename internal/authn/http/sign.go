package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/pkg/httpx"
	"github.com/farelight/zkauth/pkg/idx"
)

// SignHandler signs transaction payloads with a session's ephemeral key.
type SignHandler struct {
	Signer *service.TransactionSigner
}

type signRequest struct {
	// Payload is the transaction bytes, base64 encoded.
	Payload string `json:"payload"`
}

type signResponse struct {
	Address            string `json:"address"`
	Signature          string `json:"signature"`
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	Proof              string `json:"proof"`
	PublicInputDigest  string `json:"public_input_digest"`
	Issuer             string `json:"issuer"`
	Audience           string `json:"audience"`
	Kid                string `json:"kid,omitempty"`
	MaxEpoch           uint64 `json:"max_epoch"`
}

func (h *SignHandler) HandleSign(w http.ResponseWriter, r *http.Request) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed session id")
		return
	}

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "undecodable request body")
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "payload is not base64")
		return
	}

	bundle, err := h.Signer.Sign(r.Context(), id, payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, signResponse{
		Address:            string(bundle.Address),
		Signature:          base64.StdEncoding.EncodeToString(bundle.Signature),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(bundle.EphemeralPublicKey),
		Proof:              base64.StdEncoding.EncodeToString(bundle.Proof.ProofBytes),
		PublicInputDigest:  base64.StdEncoding.EncodeToString(bundle.Proof.PublicInputDigest),
		Issuer:             bundle.Issuer,
		Audience:           bundle.Audience,
		Kid:                bundle.Kid,
		MaxEpoch:           bundle.MaxEpoch,
	})
}
