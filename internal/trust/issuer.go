package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/security/token"
)

// Issuer gestiona tokens de un solo uso. Emitir pisa atómicamente el
// token previo del mismo (identifier, kind); consumir valida existencia
// y vencimiento. El borrado post-éxito y los chequeos de identidad son
// del router, que conoce la semántica de cada kind.
type Issuer struct {
	tokens repository.TokenRepository
	log    *zap.Logger
}

func NewIssuer(tokens repository.TokenRepository) *Issuer {
	return &Issuer{tokens: tokens, log: logger.Named("trust.issuer")}
}

// Issue emite un token nuevo y retorna el string crudo, que viaja solo
// por email: en DB queda el hash.
func (i *Issuer) Issue(ctx context.Context, identifier string, kind repository.TokenKind, payload *string, ttl time.Duration) (string, error) {
	raw, err := token.NewOpaque()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	_, err = i.tokens.Replace(ctx, repository.ReplaceTokenInput{
		Identifier: identifier,
		Kind:       kind,
		TokenHash:  token.Hash(raw),
		Payload:    payload,
		TTL:        ttl,
	})
	if err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	i.log.Info("token issued", logger.Kind(string(kind)))
	return raw, nil
}

// Consume busca el token por su string crudo y aplica las reglas
// comunes a todos los kinds:
//
//   - inexistente -> ErrNotFound
//   - vencido     -> borra el row y ErrExpired (un reintento posterior
//     ve ErrNotFound, no ErrExpired)
//
// No borra el token en el caso feliz: el flujo decide cuándo (Discard)
// porque un Conflict debe dejarlo vivo.
func (i *Issuer) Consume(ctx context.Context, raw string) (*repository.SingleUseToken, error) {
	if raw == "" {
		return nil, ErrValidation
	}
	t, err := i.tokens.GetByHash(ctx, token.Hash(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if t.Expired(time.Now()) {
		if err := i.tokens.Delete(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("delete expired token: %w", err)
		}
		i.log.Info("expired token purged", logger.Kind(string(t.Kind)))
		return nil, ErrExpired
	}
	return t, nil
}

// Discard borra el token (uso único consumado, o cleanup de huérfano).
func (i *Issuer) Discard(ctx context.Context, t *repository.SingleUseToken) error {
	return i.tokens.Delete(ctx, t.ID)
}

// PurgeIdentifier borra todos los tokens de un identifier (baja).
func (i *Issuer) PurgeIdentifier(ctx context.Context, identifier string) error {
	return i.tokens.DeleteByIdentifier(ctx, identifier)
}

// PurgeExpired borra tokens vencidos; lo corre el janitor.
func (i *Issuer) PurgeExpired(ctx context.Context) (int, error) {
	return i.tokens.DeleteExpired(ctx, time.Now())
}
