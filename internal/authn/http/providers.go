package http

import (
	"net/http"

	"github.com/farelight/zkauth/internal/authn/provider"
	"github.com/farelight/zkauth/pkg/httpx"
)

// ProvidersHandler lists the configured identity providers.
type ProvidersHandler struct {
	Providers *provider.Registry
}

type providerResponse struct {
	ID                string   `json:"id"`
	KeyClaimName      string   `json:"key_claim_name"`
	SupportedNetworks []string `json:"supported_networks"`
}

func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	configs := h.Providers.List()

	out := make([]providerResponse, 0, len(configs))
	for _, cfg := range configs {
		networks := make([]string, 0, len(cfg.SupportedNetworks))
		for _, n := range cfg.SupportedNetworks {
			networks = append(networks, string(n))
		}
		out = append(out, providerResponse{
			ID:                cfg.ID,
			KeyClaimName:      cfg.KeyClaimName,
			SupportedNetworks: networks,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providers": out})
}
