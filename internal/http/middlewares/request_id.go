// Package middlewares contiene la cadena HTTP del servicio.
package middlewares

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID asigna un id al request (o respeta el entrante) y deja un
// logger scoped en el contexto para el resto de la cadena.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		l := logger.L().With(logger.RequestID(id))
		ctx := logger.ToContext(r.Context(), l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
