package http

import (
	"net/http"

	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/httpx"
	"github.com/farelight/zkauth/pkg/idx"
)

// SessionsHandler exposes read and revoke operations over stored sessions.
type SessionsHandler struct {
	Store  store.Store
	Epochs epoch.Source
}

func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	current, err := h.Epochs.Current(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sessions, err := h.Store.Sessions().ListActive(r.Context(), current)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed session id")
		return
	}

	current, err := h.Epochs.Current(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sess, err := h.Store.Sessions().Get(r.Context(), id, current)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed session id")
		return
	}

	if err := h.Store.Sessions().Revoke(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
