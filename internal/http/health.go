package http

import (
	"context"
	"net/http"
	"time"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

type readyzResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReadyz chequea los dos stores. Degradado = 503: sin DB o sin
// ledger este servicio no puede sostener sus invariantes.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"db": "ok", "ledger": "ok"}
	healthy := true

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("readyz: db down", logger.Err(err))
			checks["db"] = "down"
			healthy = false
		}
	}
	if err := s.ledger.HealthCheck(ctx); err != nil {
		logger.From(r.Context()).Warn("readyz: ledger down", logger.Err(err))
		checks["ledger"] = "down"
		healthy = false
	}

	status := http.StatusOK
	body := readyzResponse{Status: "ready", Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		body.Status = "degraded"
	}
	writeJSON(w, status, body)
}
