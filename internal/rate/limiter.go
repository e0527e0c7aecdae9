// Package rate implementa el rate limiter multi-scope con ventana
// deslizante sobre Redis.
//
// Cada scope se configura con su propia ventana, límite y elección de
// identificador:
//
//   - public: por IP del requester, protege endpoints anónimos.
//   - private: por user id autenticado, protege acciones self-service.
//   - notification: por identificador *destino* (email), efectivamente
//     uno por cooldown, protege a terceros del spam de mails.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
)

// Scope identifica una familia de límites independiente.
type Scope string

const (
	ScopePublic       Scope = "public"
	ScopePrivate      Scope = "private"
	ScopeNotification Scope = "notification"
)

// ScopeConfig configura un scope.
type ScopeConfig struct {
	Limit  int
	Window time.Duration

	// FailOpen define qué responde Attempt si Redis no contesta.
	// Los tres scopes de fábrica van fail-closed: public y private
	// bloquean intentos de autenticación y notification bloquea spam a
	// terceros; dejar pasar durante una caída sería peor que frenar.
	FailOpen bool
}

// Result es el veredicto de un intento.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

var (
	// ErrUnknownScope indica un scope no configurado.
	ErrUnknownScope = errors.New("rate: unknown scope")

	// ErrUnavailable indica que Redis no respondió; Result.Allowed ya
	// refleja la política fail-open/fail-closed del scope.
	ErrUnavailable = errors.New("rate: backing store unavailable")
)

// Limiter mantiene una ventana deslizante por (scope, identifier) en un
// ZSET: el score es el timestamp del intento, se podan los vencidos y se
// cuenta lo que queda.
type Limiter struct {
	client *rdb.Client
	prefix string
	scopes map[Scope]ScopeConfig
}

// New crea un Limiter con el cliente inyectado y los scopes dados.
func New(client *rdb.Client, prefix string, scopes map[Scope]ScopeConfig) *Limiter {
	if prefix == "" {
		prefix = "trust:rl:"
	}
	return &Limiter{client: client, prefix: prefix, scopes: scopes}
}

// DefaultScopes son los límites de fábrica; la config puede pisarlos.
func DefaultScopes() map[Scope]ScopeConfig {
	return map[Scope]ScopeConfig{
		ScopePublic:       {Limit: 10, Window: 15 * time.Minute},
		ScopePrivate:      {Limit: 5, Window: 15 * time.Minute},
		ScopeNotification: {Limit: 1, Window: 2 * time.Minute},
	}
}

func (l *Limiter) key(scope Scope, identifier string) string {
	return l.prefix + string(scope) + ":" + strings.ReplaceAll(identifier, " ", "_")
}

// Attempt registra un intento para (scope, identifier) y devuelve el
// veredicto. Poda, alta y conteo van en una sola transacción MULTI/EXEC:
// cada intento se cuenta a sí mismo junto con todo lo ya admitido, así
// que dos intentos concurrentes nunca pueden observar ambos una ventana
// con lugar. Los intentos denegados no consumen capacidad: cuando la
// cuenta excede el límite se retira el propio miembro.
func (l *Limiter) Attempt(ctx context.Context, scope Scope, identifier string) (Result, error) {
	cfg, ok := l.scopes[scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	now := time.Now()
	key := l.key(scope, identifier)
	member := uuid.NewString()
	minScore := strconv.FormatInt(now.Add(-cfg.Window).UnixNano(), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", minScore)
	pipe.ZAdd(ctx, key, rdb.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return l.failVerdict(cfg, now), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	count := card.Val()
	if count > int64(cfg.Limit) {
		// Denegado: se devuelve el miembro propio y la ventana se libera
		// cuando expira el intento más viejo que quede.
		l.client.ZRem(ctx, key, member)
		resetAt := now.Add(cfg.Window)
		if oldest, err := l.client.ZRangeWithScores(ctx, key, 0, 0).Result(); err == nil && len(oldest) > 0 {
			resetAt = time.Unix(0, int64(oldest[0].Score)).Add(cfg.Window)
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: int64(cfg.Limit) - count,
		ResetAt:   now.Add(cfg.Window),
	}, nil
}

func (l *Limiter) failVerdict(cfg ScopeConfig, now time.Time) Result {
	if cfg.FailOpen {
		return Result{Allowed: true, Remaining: 0, ResetAt: now.Add(cfg.Window)}
	}
	return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(cfg.Window)}
}
