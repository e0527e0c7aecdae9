package http

import (
	"net/http"

	"github.com/forense-lab/peritia-trust/internal/http/middlewares"
	"github.com/forense-lab/peritia-trust/internal/rate"
	"github.com/forense-lab/peritia-trust/internal/trust"
)

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type emailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// handleVerificationRequest arranca la verificación de email. Doble
// gate: public por IP del requester y notification por el email
// destino — nadie puede spamear la casilla de un tercero aunque rote
// de IP.
func (s *Server) handleVerificationRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	// La clave se arma con la forma canónica del destino: el cooldown es
	// por casilla, no por cómo el requester escribió la dirección.
	if !s.allow(w, r, rate.ScopeNotification, "verify:"+trust.NormalizeEmail(req.Email)) {
		return
	}
	if err := s.trust.RequestEmailVerification(r.Context(), req.Email); err != nil {
		observeFlow("verification_request", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("verification_request", "ok")
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func (s *Server) handleVerificationConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if err := s.trust.ConfirmEmailVerification(r.Context(), req.Token); err != nil {
		observeFlow("verification_confirm", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("verification_confirm", "ok")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if !s.allow(w, r, rate.ScopeNotification, "reset:"+trust.NormalizeEmail(req.Email)) {
		return
	}
	if err := s.trust.RequestPasswordReset(r.Context(), req.Email); err != nil {
		observeFlow("password_reset_request", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("password_reset_request", "ok")
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if err := s.trust.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		observeFlow("password_reset_confirm", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("password_reset_confirm", "ok")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleEmailChangeRequest requiere sesión: scope private por user id.
func (s *Server) handleEmailChangeRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.SessionFrom(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "unauthorized", "sesión requerida")
		return
	}
	var req emailChangeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePrivate, sess.UserID) {
		return
	}
	if !s.allow(w, r, rate.ScopeNotification, "change:"+trust.NormalizeEmail(req.NewEmail)) {
		return
	}
	if err := s.trust.RequestEmailChange(r.Context(), sess.UserID, req.NewEmail); err != nil {
		observeFlow("email_change_request", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("email_change_request", "ok")
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func (s *Server) handleEmailChangeConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if err := s.trust.ConfirmEmailChange(r.Context(), req.Token); err != nil {
		observeFlow("email_change_confirm", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("email_change_confirm", "ok")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleAccountDeletionRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.SessionFrom(r.Context())
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "unauthorized", "sesión requerida")
		return
	}
	if !s.allow(w, r, rate.ScopePrivate, sess.UserID) {
		return
	}
	if err := s.trust.RequestAccountDeletion(r.Context(), sess.UserID); err != nil {
		observeFlow("account_deletion_request", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("account_deletion_request", "ok")
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func (s *Server) handleAccountDeletionConfirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.allow(w, r, rate.ScopePublic, middlewares.ClientIP(r)) {
		return
	}
	if err := s.trust.ConfirmAccountDeletion(r.Context(), req.Token); err != nil {
		observeFlow("account_deletion_confirm", "error")
		writeError(w, r, err)
		return
	}
	observeFlow("account_deletion_confirm", "ok")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
