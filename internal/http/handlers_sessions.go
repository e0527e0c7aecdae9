package http

import (
	"net/http"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

type sessionIDsRequest struct {
	SessionIDs []string `json:"session_ids"`
}

type sessionsCountResponse struct {
	Count int64 `json:"count"`
}

// handleSessionsRevoke superficie interna: la app manda los jtis a
// invalidar (logout-all, disable de cuenta, rotación de credenciales).
func (s *Server) handleSessionsRevoke(w http.ResponseWriter, r *http.Request) {
	var req sessionIDsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.SessionIDs) == 0 {
		writeAPIError(w, http.StatusBadRequest, "invalid_request", "session_ids requerido")
		return
	}
	if err := s.ledger.Revoke(r.Context(), req.SessionIDs...); err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshLedgerGauge(r)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleSessionsSync reemplaza el ledger entero desde la fuente
// autoritativa de la app.
func (s *Server) handleSessionsSync(w http.ResponseWriter, r *http.Request) {
	var req sessionIDsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := s.ledger.Sync(r.Context(), req.SessionIDs); err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshLedgerGauge(r)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSessionsCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.Count(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	setLedgerSize(n)
	writeJSON(w, http.StatusOK, sessionsCountResponse{Count: n})
}

func (s *Server) refreshLedgerGauge(r *http.Request) {
	n, err := s.ledger.Count(r.Context())
	if err != nil {
		logger.From(r.Context()).Debug("ledger count for gauge failed", logger.Err(err))
		return
	}
	setLedgerSize(n)
}
