package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar para mantener keys consistentes entre paquetes.
// Nunca loguear tokens crudos ni codes: solo ids y clases de identifier.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Kind identifica la clase de token/flujo (verification, password_reset, ...).
func Kind(v string) zap.Field { return zap.String("kind", v) }

// Scope identifica el scope de rate limiting (public, private, notification).
func Scope(v string) zap.Field { return zap.String("scope", v) }

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }
