package repository

import (
	"context"
	"time"
)

// RecoveryCode representa un backup code de 2FA. El plaintext nunca se
// persiste; used_at sirve de flag y de rastro de auditoría (los codes
// usados no se borran salvo regeneración completa del set).
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Used indica si el code ya fue consumido.
func (c *RecoveryCode) Used() bool { return c.UsedAt != nil }

// RecoveryCodeRepository define operaciones sobre recovery codes.
type RecoveryCodeRepository interface {
	// ReplaceAll reemplaza el set completo del usuario en una transacción:
	// DELETE de todo el set previo + INSERT batch de los hashes nuevos.
	// Nunca puede observarse un set mezclado viejo/nuevo.
	ReplaceAll(ctx context.Context, userID string, hashes []string) error

	// ListUnused retorna los codes sin usar del usuario.
	ListUnused(ctx context.Context, userID string) ([]RecoveryCode, error)

	// MarkUsed marca un code como usado de forma condicional
	// (WHERE used_at IS NULL). Retorna true solo si este caller ganó el
	// flip: dos verify concurrentes no pueden consumir el mismo code.
	MarkUsed(ctx context.Context, codeID string, at time.Time) (bool, error)

	// Counts retorna (total, usados) del set actual del usuario.
	Counts(ctx context.Context, userID string) (total int, used int, err error)

	// DeleteAll elimina todos los codes del usuario (baja de cuenta).
	DeleteAll(ctx context.Context, userID string) error
}
