package http

import (
	"net/http"

	"github.com/forense-lab/peritia-trust/internal/http/middlewares"
	"github.com/forense-lab/peritia-trust/internal/rate"
	"github.com/forense-lab/peritia-trust/internal/security/recovery"
)

type recoveryVerifyRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type recoveryVerifyResponse struct {
	Matched bool `json:"matched"`
}

type recoveryRegenerateResponse struct {
	Codes []string `json:"codes"`
}

type recoveryStatusResponse struct {
	TotalCodes       int                    `json:"total_codes"`
	UsedCount        int                    `json:"used_count"`
	UnusedCount      int                    `json:"unused_count"`
	CodeStatus       [recovery.SetSize]bool `json:"code_status"`
	HasRecoveryCodes bool                   `json:"has_recovery_codes"`
}

// handleRecoveryVerify se usa a mitad del login 2FA. Scope private por
// el user id objetivo: acota fuerza bruta contra una cuenta puntual.
func (s *Server) handleRecoveryVerify(w http.ResponseWriter, r *http.Request) {
	var req recoveryVerifyRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid_request", "user_id requerido")
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if !s.allow(w, r, rate.ScopePrivate, req.UserID) {
		return
	}
	matched, err := s.vault.Verify(r.Context(), req.UserID, req.Code)
	if err != nil {
		observeFlow("recovery_verify", "error")
		writeError(w, r, err)
		return
	}
	result := "miss"
	if matched {
		result = "ok"
	}
	observeFlow("recovery_verify", result)
	writeJSON(w, http.StatusOK, recoveryVerifyResponse{Matched: matched})
}

// handleRecoveryRegenerate invalida TODO el set previo: siempre detrás
// del scope private, es una operación sensible a abuso.
func (s *Server) handleRecoveryRegenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.SessionFrom(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "unauthorized", "sesión requerida")
		return
	}
	if !s.allow(w, r, rate.ScopePrivate, sess.UserID) {
		return
	}
	codes, err := s.vault.Regenerate(r.Context(), sess.UserID)
	if err != nil {
		observeFlow("recovery_regenerate", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("recovery_regenerate", "ok")
	writeJSON(w, http.StatusOK, recoveryRegenerateResponse{Codes: codes})
}

func (s *Server) handleRecoveryStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.SessionFrom(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "unauthorized", "sesión requerida")
		return
	}
	st, err := s.vault.StatusFor(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recoveryStatusResponse{
		TotalCodes:       st.Total,
		UsedCount:        st.Used,
		UnusedCount:      st.Unused,
		CodeStatus:       st.CodeStatus,
		HasRecoveryCodes: st.HasCodes,
	})
}
