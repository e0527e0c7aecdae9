// Package trust implementa el router de verificación: la única pieza
// que compone issuer, usuarios, ledger de revocación y despacho de
// email para cumplir los flujos de confianza de cuenta.
package trust

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/ledger"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/vault"
)

// SessionDirectory lista las sesiones activas de un usuario. Lo provee
// el colaborador externo dueño de las sesiones; acá lo respalda
// session_activity como aproximación razonable.
type SessionDirectory interface {
	ActiveSessionIDs(ctx context.Context, userID string) ([]string, error)
}

// TTLs vencimientos por flujo.
type TTLs struct {
	Verify   time.Duration
	Change   time.Duration
	Reset    time.Duration
	Deletion time.Duration
}

// DefaultTTLs valores de fábrica.
var DefaultTTLs = TTLs{
	Verify:   48 * time.Hour,
	Change:   1 * time.Hour,
	Reset:    1 * time.Hour,
	Deletion: 24 * time.Hour,
}

// Deps agrupa los colaboradores del router.
type Deps struct {
	Issuer   *Issuer
	Users    repository.UserRepository
	Vault    *vault.Vault
	Ledger   ledger.Ledger
	Email    email.Dispatcher
	Sessions SessionDirectory
	TTLs     TTLs
}

// Service es el router de verificación.
type Service struct {
	issuer   *Issuer
	users    repository.UserRepository
	vault    *vault.Vault
	ledger   ledger.Ledger
	email    email.Dispatcher
	sessions SessionDirectory
	ttls     TTLs
	log      *zap.Logger
}

func NewService(d Deps) *Service {
	t := d.TTLs
	if t.Verify <= 0 {
		t.Verify = DefaultTTLs.Verify
	}
	if t.Change <= 0 {
		t.Change = DefaultTTLs.Change
	}
	if t.Reset <= 0 {
		t.Reset = DefaultTTLs.Reset
	}
	if t.Deletion <= 0 {
		t.Deletion = DefaultTTLs.Deletion
	}
	return &Service{
		issuer:   d.Issuer,
		users:    d.Users,
		vault:    d.Vault,
		ledger:   d.Ledger,
		email:    d.Email,
		sessions: d.Sessions,
		ttls:     t,
		log:      logger.Named("trust"),
	}
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail es la forma canónica de una dirección en todo el
// subsistema: quien construya claves por destino (p. ej. el scope
// notification del limiter) debe pasar por acá, o variantes de
// mayúsculas de la misma casilla terminarían en ventanas distintas.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	return s != "" && len(s) <= 254 && emailRe.MatchString(s)
}

// revokeSessions invalida todas las sesiones activas del usuario en el
// ledger. Se llama ANTES de mutar la identidad: si el ledger está caído
// preferimos abortar la mutación a dejar sesiones viejas vivas sobre
// una identidad nueva.
func (s *Service) revokeSessions(ctx context.Context, userID string) error {
	ids, err := s.sessions.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.ledger.Revoke(ctx, ids...); err != nil {
		return err
	}
	s.log.Info("sessions revoked", logger.UserID(userID), logger.Count(len(ids)))
	return nil
}
