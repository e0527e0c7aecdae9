package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// Recover convierte panics en 500 sin filtrar el stack al cliente.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.From(r.Context()).Error("panic recovered",
					zap.Any("panic", rec), logger.Path(r.URL.Path))
				http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
