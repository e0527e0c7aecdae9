package ledger

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLedger guarda los JTIs revocados en un set de Redis con TTL
// rodante sobre el set completo.
type RedisLedger struct {
	client *rdb.Client
	prefix string
	ttl    time.Duration
}

// NewRedis crea un ledger sobre el cliente dado. El cliente se inyecta,
// nunca se construye acá: sin singletons globales, cada test puede
// levantar el suyo.
func NewRedis(client *rdb.Client, prefix string, ttl time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = "trust:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) key() string     { return l.prefix + "revoked" }
func (l *RedisLedger) syncKey() string { return l.prefix + "revoked:next" }

func (l *RedisLedger) Revoke(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, l.key(), members...)
	pipe.Expire(ctx, l.key(), l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *RedisLedger) IsRevoked(ctx context.Context, id string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.key(), id).Result()
	if err != nil {
		// Veredicto unknown: jamás retornar false "porque redis cayó"
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Sync reemplaza el set completo con doble buffer + RENAME atómico:
// se arma el set nuevo en una key aparte y se renombra encima del
// actual, así el ledger nunca pasa por un estado vacío intermedio.
func (l *RedisLedger) Sync(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		if err := l.client.Del(ctx, l.key()).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := l.client.TxPipeline()
	pipe.Del(ctx, l.syncKey())
	pipe.SAdd(ctx, l.syncKey(), members...)
	pipe.Rename(ctx, l.syncKey(), l.key())
	pipe.Expire(ctx, l.key(), l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *RedisLedger) Count(ctx context.Context) (int64, error) {
	n, err := l.client.SCard(ctx, l.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// HealthCheck escribe y relee una key de prueba.
func (l *RedisLedger) HealthCheck(ctx context.Context) error {
	probe := l.prefix + "health"
	if err := l.client.Set(ctx, probe, "ok", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	v, err := l.client.Get(ctx, probe).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if v != "ok" {
		return fmt.Errorf("%w: health probe mismatch", ErrUnavailable)
	}
	return nil
}
