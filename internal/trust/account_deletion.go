package trust

import (
	"context"
	"errors"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	emailpkg "github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// RequestAccountDeletion emite un token de baja para el usuario
// autenticado y lo manda a su email actual.
func (s *Service) RequestAccountDeletion(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityGone
		}
		return err
	}

	raw, err := s.issuer.Issue(ctx, userID, repository.TokenAccountDeletion, nil, s.ttls.Deletion)
	if err != nil {
		return err
	}
	s.email.Dispatch(ctx, emailpkg.Message{
		To: u.Email, Kind: emailpkg.KindAccountDeletion, Token: raw, TTL: s.ttls.Deletion,
	})
	return nil
}

// ConfirmAccountDeletion consume el token y elimina la cuenta: revoca
// sesiones, purga recovery codes y tokens pendientes, y borra el
// registro. "Ya estaba borrada" es benigno: se limpia el token y éxito.
func (s *Service) ConfirmAccountDeletion(ctx context.Context, rawToken string) error {
	t, err := s.issuer.Consume(ctx, rawToken)
	if err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, t.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// La baja ya ocurrió por otro camino: nada que hacer
			_ = s.issuer.Discard(ctx, t)
			return nil
		}
		return err
	}

	if err := s.revokeSessions(ctx, u.ID); err != nil {
		return err
	}
	if err := s.vault.Purge(ctx, u.ID); err != nil {
		return err
	}
	// Tokens colgando de ambas formas del identifier (user id y email)
	if err := s.issuer.PurgeIdentifier(ctx, u.ID); err != nil {
		return err
	}
	if err := s.issuer.PurgeIdentifier(ctx, NormalizeEmail(u.Email)); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info("account deleted", logger.UserID(u.ID))
	return nil
}
