package trust

import (
	"context"
	"errors"
	"time"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	emailpkg "github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// RequestEmailVerification emite un token de verificación y despacha el
// mail. Anti-enumeración: si el email no corresponde a ninguna cuenta,
// éxito silencioso — la respuesta no revela existencia.
func (s *Service) RequestEmailVerification(ctx context.Context, addr string) error {
	addr = NormalizeEmail(addr)
	if !validEmail(addr) {
		return ErrValidation
	}

	u, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.From(ctx).Debug("verification request for unknown email (anti-enum)")
			return nil
		}
		return err
	}
	if u.EmailVerified() {
		// Nada que hacer; tampoco revelamos que ya estaba verificado
		return nil
	}

	raw, err := s.issuer.Issue(ctx, addr, repository.TokenVerification, nil, s.ttls.Verify)
	if err != nil {
		return err
	}
	s.email.Dispatch(ctx, emailpkg.Message{
		To: addr, Kind: emailpkg.KindVerification, Token: raw, TTL: s.ttls.Verify,
	})
	return nil
}

// ConfirmEmailVerification consume el token y marca el email como
// verificado. "Ya estaba verificado" es benigno: se descarta el token y
// se retorna éxito, no error — distingue "nada que hacer" de "roto".
func (s *Service) ConfirmEmailVerification(ctx context.Context, rawToken string) error {
	t, err := s.issuer.Consume(ctx, rawToken)
	if err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, t.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Identidad huérfana: limpiar el token y reportar
			_ = s.issuer.Discard(ctx, t)
			return ErrIdentityGone
		}
		return err
	}

	if !u.EmailVerified() {
		if err := s.users.MarkEmailVerified(ctx, u.ID, time.Now().UTC()); err != nil {
			return err
		}
	}
	if err := s.issuer.Discard(ctx, t); err != nil {
		return err
	}
	s.log.Info("email verified", logger.UserID(u.ID))
	return nil
}
