package http

import (
	"net/http"
	"time"

	"github.com/farelight/zkauth/internal/authn/epoch"
	"github.com/farelight/zkauth/internal/authn/store"
	"github.com/farelight/zkauth/pkg/httpx"
)

// ReadyzHandler is the readiness probe. It checks the session store and the
// epoch source, the two dependencies every request path needs.
func ReadyzHandler(startTime time.Time, version string, st store.Store, epochs epoch.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			Epoch:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if _, err := epochs.Current(r.Context()); err != nil {
			checks.Epoch = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
