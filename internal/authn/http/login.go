package http

import (
	"encoding/json"
	"net/http"

	"github.com/farelight/zkauth/internal/authn/domain"
	"github.com/farelight/zkauth/internal/authn/service"
	"github.com/farelight/zkauth/pkg/httpx"
	"github.com/farelight/zkauth/pkg/idx"
)

// LoginHandler drives the provider login round trip on behalf of the host
// application.
type LoginHandler struct {
	LoginService *service.LoginService
}

type beginLoginRequest struct {
	Provider string `json:"provider"`
	Network  string `json:"network"`
}

type beginLoginResponse struct {
	AttemptID        string `json:"attempt_id"`
	AuthorizationURL string `json:"authorization_url"`
	MaxEpoch         uint64 `json:"max_epoch"`
}

// HandleBegin starts a login attempt and returns the authorization URL the
// host should open in a browser.
func (h *LoginHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "undecodable request body")
		return
	}

	network := domain.Network(req.Network)
	if !network.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown network")
		return
	}

	resp, err := h.LoginService.BeginLogin(r.Context(), req.Provider, network)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, beginLoginResponse{
		AttemptID:        resp.AttemptID.String(),
		AuthorizationURL: resp.AuthorizationURL,
		MaxEpoch:         resp.MaxEpoch,
	})
}

type callbackRequest struct {
	AttemptID   string `json:"attempt_id"`
	RedirectURL string `json:"redirect_url"`
}

// HandleCallback completes an attempt with the redirect URL captured by the
// host and returns the finished session.
func (h *LoginHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "undecodable request body")
		return
	}

	attemptID, err := idx.Parse(req.AttemptID)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed attempt id")
		return
	}

	sess, err := h.LoginService.CompleteLogin(r.Context(), attemptID, req.RedirectURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// HandleCancel discards an in-flight attempt.
func (h *LoginHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	attemptID, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed attempt id")
		return
	}

	if err := h.LoginService.CancelLogin(r.Context(), attemptID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
