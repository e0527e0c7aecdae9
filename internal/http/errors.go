package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/trust"
	"github.com/forense-lab/peritia-trust/internal/vault"
)

// apiError es el cuerpo de error que ve el cliente. Nunca lleva
// detalle interno: los fallos de infraestructura se loguean completos
// y salen como un genérico.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: code, Message: msg})
}

// writeError mapea la taxonomía de negocio a HTTP. Todo lo que no sea
// un sentinel conocido es infraestructura: 500 genérico + log completo.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, trust.ErrValidation), errors.Is(err, vault.ErrMalformedCode):
		writeAPIError(w, http.StatusBadRequest, "invalid_request", "el pedido es inválido")
	case errors.Is(err, trust.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, "token_not_found", "el enlace no es válido, pedí uno nuevo")
	case errors.Is(err, trust.ErrExpired):
		writeAPIError(w, http.StatusGone, "token_expired", "el enlace venció, pedí uno nuevo")
	case errors.Is(err, trust.ErrIdentityGone):
		writeAPIError(w, http.StatusGone, "identity_gone", "la cuenta asociada ya no existe")
	case errors.Is(err, trust.ErrConflict):
		writeAPIError(w, http.StatusConflict, "conflict", "el estado cambió desde que se emitió el enlace")
	case errors.Is(err, trust.ErrForbidden):
		writeAPIError(w, http.StatusForbidden, "forbidden", "no tenés permiso sobre este recurso")
	case errors.Is(err, trust.ErrRateLimited):
		writeAPIError(w, http.StatusTooManyRequests, "rate_limited", "demasiados intentos, probá más tarde")
	default:
		logger.From(r.Context()).Error("unhandled error", logger.Err(err))
		writeAPIError(w, http.StatusInternalServerError, "internal", "error interno, reintentá más tarde")
	}
}
