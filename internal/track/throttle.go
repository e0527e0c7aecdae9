// Package track acota la frecuencia de escritura de los updates de
// "última actividad" de sesiones.
package track

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// DefaultWindow es la ventana por defecto entre escrituras de liveness.
const DefaultWindow = 5 * time.Minute

// Throttle responde si corresponde persistir actividad para una sesión.
type Throttle interface {
	// ShouldTrack retorna true a lo sumo una vez por ventana por sesión.
	// Ante falla del store falla ABIERTO (true): preferimos escrituras
	// de más antes que perder datos de actividad en silencio.
	ShouldTrack(ctx context.Context, sessionID string) bool
}

// RedisThrottle implementa el throttle con SET NX EX: el primer caller
// de la ventana crea la key y gana, el resto la ve y no escribe.
type RedisThrottle struct {
	client *rdb.Client
	prefix string
	window time.Duration
}

func NewRedis(client *rdb.Client, prefix string, window time.Duration) *RedisThrottle {
	if prefix == "" {
		prefix = "trust:track:"
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisThrottle{client: client, prefix: prefix, window: window}
}

func (t *RedisThrottle) ShouldTrack(ctx context.Context, sessionID string) bool {
	ok, err := t.client.SetNX(ctx, t.prefix+sessionID, 1, t.window).Result()
	if err != nil {
		logger.From(ctx).Warn("track throttle unavailable, failing open",
			logger.Component("track"), logger.Err(err))
		return true
	}
	return ok
}

// MemoryThrottle versión in-process sobre go-cache (dev, tests).
type MemoryThrottle struct {
	c      *gocache.Cache
	window time.Duration
}

func NewMemory(window time.Duration) *MemoryThrottle {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryThrottle{c: gocache.New(window, time.Minute), window: window}
}

func (t *MemoryThrottle) ShouldTrack(_ context.Context, sessionID string) bool {
	// Add falla si la key ya existe: mismo semántica que SET NX
	return t.c.Add(sessionID, struct{}{}, t.window) == nil
}
