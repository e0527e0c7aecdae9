package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/ledger"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/track"
)

type sessionCtxKey struct{}

// Session es lo que el middleware deja en el contexto tras validar.
type Session struct {
	UserID string
	JTI    string
}

// SessionFrom extrae la sesión autenticada del contexto.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(Session)
	return s, ok
}

// AuthConfig configura el middleware de autenticación.
type AuthConfig struct {
	Secret   []byte
	Ledger   ledger.Ledger
	Throttle track.Throttle
	Activity repository.ActivityRecorder
}

// Auth valida el bearer token HS256 del caller, consulta el ledger de
// revocación por el jti y registra actividad (con throttle).
//
// Política ante ledger "unknown": fail-closed con 503, no 401 — el
// cliente sabe que debe reintentar, no que su sesión murió. El veredicto
// unknown jamás se trata como "no revocado".
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return cfg.Secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || claims.Subject == "" || claims.ID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			revoked, err := cfg.Ledger.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				logger.From(r.Context()).Error("revocation check unavailable", logger.Err(err))
				http.Error(w, `{"error":"revocation check unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if revoked {
				http.Error(w, `{"error":"session revoked"}`, http.StatusUnauthorized)
				return
			}

			// Liveness: a lo sumo una escritura por ventana por sesión
			if cfg.Activity != nil && cfg.Throttle.ShouldTrack(r.Context(), claims.ID) {
				if err := cfg.Activity.Touch(r.Context(), claims.ID, claims.Subject, time.Now().UTC()); err != nil {
					logger.From(r.Context()).Warn("activity touch failed", logger.Err(err))
				}
			}

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, Session{
				UserID: claims.Subject,
				JTI:    claims.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
