package ledger

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLedger implementa Ledger in-process sobre go-cache. Para
// desarrollo y despliegues de una sola instancia sin Redis; no es
// distribuido.
type MemoryLedger struct {
	c   *gocache.Cache
	ttl time.Duration
}

func NewMemory(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{
		c:   gocache.New(ttl, 10*time.Minute),
		ttl: ttl,
	}
}

func (l *MemoryLedger) Revoke(_ context.Context, ids ...string) error {
	for _, id := range ids {
		l.c.Set(id, struct{}{}, l.ttl)
	}
	return nil
}

func (l *MemoryLedger) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := l.c.Get(id)
	return ok, nil
}

func (l *MemoryLedger) Sync(_ context.Context, ids []string) error {
	l.c.Flush()
	for _, id := range ids {
		l.c.Set(id, struct{}{}, l.ttl)
	}
	return nil
}

func (l *MemoryLedger) Count(_ context.Context) (int64, error) {
	return int64(l.c.ItemCount()), nil
}

func (l *MemoryLedger) HealthCheck(_ context.Context) error { return nil }
