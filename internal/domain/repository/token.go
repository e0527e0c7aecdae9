package repository

import (
	"context"
	"time"
)

// TokenKind indica el propósito del token de un solo uso.
type TokenKind string

const (
	TokenVerification    TokenKind = "verification"
	TokenEmailChange     TokenKind = "email_change"
	TokenPasswordReset   TokenKind = "password_reset"
	TokenAccountDeletion TokenKind = "account_deletion"
)

// SingleUseToken representa un token efímero que habilita exactamente un
// flujo sensible (verificación, cambio de email, reset, baja de cuenta).
//
// Invariante: a lo sumo un token vivo por (identifier, kind). Se garantiza
// con un UNIQUE en la tabla más un upsert, nunca con read-then-write.
type SingleUseToken struct {
	ID         string
	Identifier string // email o user id según el kind
	Kind       TokenKind
	TokenHash  string // sha256 del token crudo; el crudo nunca se persiste
	Payload    *string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired indica si el token ya venció respecto de now.
func (t *SingleUseToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ReplaceTokenInput contiene los datos para emitir un token.
type ReplaceTokenInput struct {
	Identifier string
	Kind       TokenKind
	TokenHash  string
	Payload    *string
	TTL        time.Duration
}

// TokenRepository define operaciones sobre tokens de un solo uso.
type TokenRepository interface {
	// Replace emite un token nuevo pisando atómicamente cualquier token
	// previo del mismo (identifier, kind). Una sola sentencia: dos llamadas
	// concurrentes nunca dejan dos tokens vivos.
	Replace(ctx context.Context, input ReplaceTokenInput) (*SingleUseToken, error)

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*SingleUseToken, error)

	// Delete elimina un token por id. Idempotente: borrar un token ya
	// borrado no es error.
	Delete(ctx context.Context, id string) error

	// DeleteByIdentifier elimina todos los tokens de un identifier
	// (cleanup al dar de baja una identidad).
	DeleteByIdentifier(ctx context.Context, identifier string) error

	// DeleteExpired elimina tokens vencidos (janitor). Retorna cuántos borró.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
