// Package http expone el subsistema de confianza como servicio HTTP
// para el resto de la aplicación de gestión de casos.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/http/middlewares"
	"github.com/forense-lab/peritia-trust/internal/ledger"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/rate"
	"github.com/forense-lab/peritia-trust/internal/track"
	"github.com/forense-lab/peritia-trust/internal/trust"
	"github.com/forense-lab/peritia-trust/internal/vault"
)

// Pinger chequeo de conexión del store relacional (readyz).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps agrupa todo lo que necesita el server.
type Deps struct {
	Trust     *trust.Service
	Vault     *vault.Vault
	Ledger    ledger.Ledger
	Limiter   *rate.Limiter
	Throttle  track.Throttle
	Activity  repository.ActivityRecorder
	DB        Pinger
	JWTSecret []byte
}

// Server es el handler HTTP del servicio.
type Server struct {
	trust   *trust.Service
	vault   *vault.Vault
	ledger  ledger.Ledger
	limiter *rate.Limiter
	db      Pinger
	router  chi.Router
}

// New arma el router completo con middlewares y rutas.
func New(d Deps) *Server {
	s := &Server{
		trust:   d.Trust,
		vault:   d.Vault,
		ledger:  d.Ledger,
		limiter: d.Limiter,
		db:      d.DB,
	}

	metricsHandler := RegisterMetrics(nil)

	r := chi.NewRouter()
	r.Use(middlewares.RequestID)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Recover)
	r.Use(withHTTPMetrics(routePattern))

	auth := middlewares.Auth(middlewares.AuthConfig{
		Secret:   d.JWTSecret,
		Ledger:   d.Ledger,
		Throttle: d.Throttle,
		Activity: d.Activity,
	})

	r.Route("/v1", func(r chi.Router) {
		// Flujos públicos: el token del email es la credencial
		r.Post("/verification/request", s.handleVerificationRequest)
		r.Post("/verification/confirm", s.handleVerificationConfirm)
		r.Post("/password-reset/request", s.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", s.handlePasswordResetConfirm)
		r.Post("/email-change/confirm", s.handleEmailChangeConfirm)
		r.Post("/account-deletion/confirm", s.handleAccountDeletionConfirm)

		// Verify de recovery codes: ocurre a mitad del login 2FA, el
		// caller (flujo de login) todavía no tiene bearer
		r.Post("/recovery-codes/verify", s.handleRecoveryVerify)

		// Self-service autenticado
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/email-change/request", s.handleEmailChangeRequest)
			r.Post("/account-deletion/request", s.handleAccountDeletionRequest)
			r.Post("/recovery-codes/regenerate", s.handleRecoveryRegenerate)
			r.Get("/recovery-codes/status", s.handleRecoveryStatus)
		})

		// Superficie interna para el resto de la app
		r.Post("/sessions/revoke", s.handleSessionsRevoke)
		r.Post("/sessions/sync", s.handleSessionsSync)
		r.Get("/sessions/revoked/count", s.handleSessionsCount)
	})

	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

const maxBodyBytes = 1 << 16

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		writeAPIError(w, http.StatusBadRequest, "invalid_request", "body inválido")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// allow aplica el rate limiter para (scope, id). Si deniega, responde
// 429 con Retry-After y corta. Los headers informativos van siempre.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope rate.Scope, id string) bool {
	res, err := s.limiter.Attempt(r.Context(), scope, id)
	if err != nil {
		// Result ya trae la política fail-open/closed del scope
		logger.From(r.Context()).Warn("rate limiter unavailable",
			logger.Scope(string(scope)), logger.Err(err))
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		observeRateLimited(string(scope))
		retry := time.Until(res.ResetAt)
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		}
		writeError(w, r, trust.ErrRateLimited)
		return false
	}
	return true
}
