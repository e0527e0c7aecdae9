// Package ledger implementa la blacklist distribuida de sesiones
// revocadas (por JTI).
//
// La membresía es monótona: una entrada solo desaparece por expiración
// del TTL rodante o por un Sync completo desde la fuente autoritativa.
package ledger

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL es la vida natural máxima de una credencial: mantener la
// entrada ese tiempo alcanza, después el token expiró solo.
const DefaultTTL = 30 * 24 * time.Hour

// ErrUnavailable indica que el backing store no pudo responder. Un
// IsRevoked con este error es un veredicto "unknown": el caller decide
// su política fail-open/fail-closed, el ledger nunca adivina "false".
var ErrUnavailable = errors.New("ledger: backing store unavailable")

// Ledger es la vista que consumen los middlewares y el router.
type Ledger interface {
	// Revoke agrega los ids a la blacklist y renueva el TTL rodante del
	// set completo. Idempotente con ids repetidos.
	Revoke(ctx context.Context, ids ...string) error

	// IsRevoked responde si el id está revocado. Un error no nulo es
	// "unknown", nunca debe coaccionarse a false.
	IsRevoked(ctx context.Context, id string) (bool, error)

	// Sync reemplaza el contenido completo desde la fuente autoritativa.
	Sync(ctx context.Context, ids []string) error

	// Count retorna la cardinalidad actual (observabilidad).
	Count(ctx context.Context) (int64, error)

	// HealthCheck hace un round-trip barato de escritura+lectura.
	HealthCheck(ctx context.Context) error
}
