package trust

import (
	"context"
	"errors"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	emailpkg "github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/security/password"
)

// MinPasswordLen mínimo aceptado en el reset. La política completa de
// contraseñas es de la aplicación; acá solo el piso.
const MinPasswordLen = 8

// RequestPasswordReset emite un token de reset. Anti-enumeración: email
// desconocido -> éxito silencioso. El scope notification del limiter
// (keyed por el email destino) se aplica en la capa HTTP para que nadie
// pueda spamear a un tercero con resets, sin importar quién los dispara.
func (s *Service) RequestPasswordReset(ctx context.Context, addr string) error {
	addr = NormalizeEmail(addr)
	if !validEmail(addr) {
		return ErrValidation
	}

	if _, err := s.users.GetByEmail(ctx, addr); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.From(ctx).Debug("reset request for unknown email (anti-enum)")
			return nil
		}
		return err
	}

	raw, err := s.issuer.Issue(ctx, addr, repository.TokenPasswordReset, nil, s.ttls.Reset)
	if err != nil {
		return err
	}
	s.email.Dispatch(ctx, emailpkg.Message{
		To: addr, Kind: emailpkg.KindPasswordReset, Token: raw, TTL: s.ttls.Reset,
	})
	return nil
}

// ConfirmPasswordReset consume el token, fija la contraseña nueva y
// revoca todas las sesiones del usuario (la revocación va primero, ver
// ConfirmEmailChange).
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return ErrValidation
	}

	t, err := s.issuer.Consume(ctx, rawToken)
	if err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, t.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.issuer.Discard(ctx, t)
			return ErrIdentityGone
		}
		return err
	}

	hash, err := password.Hash(password.Default, newPassword)
	if err != nil {
		return err
	}

	if err := s.revokeSessions(ctx, u.ID); err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.issuer.Discard(ctx, t); err != nil {
		return err
	}
	s.log.Info("password reset", logger.UserID(u.ID))
	return nil
}
