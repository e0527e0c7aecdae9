package trust

import (
	"context"
	"errors"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	emailpkg "github.com/forense-lab/peritia-trust/internal/email"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// RequestEmailChange emite un token de cambio de email para el usuario
// autenticado. El mail con el token va a la dirección NUEVA: confirmar
// prueba control sobre ella.
func (s *Service) RequestEmailChange(ctx context.Context, userID, newAddr string) error {
	newAddr = NormalizeEmail(newAddr)
	if !validEmail(newAddr) {
		return ErrValidation
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityGone
		}
		return err
	}
	if NormalizeEmail(u.Email) == newAddr {
		return ErrValidation
	}

	taken, err := s.users.EmailTaken(ctx, newAddr, userID)
	if err != nil {
		return err
	}
	if taken {
		return ErrConflict
	}

	// El payload lleva la dirección pendiente; el identifier es el user
	// id, así un segundo pedido del mismo usuario pisa al primero.
	raw, err := s.issuer.Issue(ctx, userID, repository.TokenEmailChange, &newAddr, s.ttls.Change)
	if err != nil {
		return err
	}
	s.email.Dispatch(ctx, emailpkg.Message{
		To: newAddr, Kind: emailpkg.KindEmailChange, Token: raw, TTL: s.ttls.Change,
	})
	return nil
}

// ConfirmEmailChange consume el token y aplica el cambio.
//
// Ventana TOCTOU: si otra cuenta reclamó la dirección entre emisión y
// consumo, retorna ErrConflict SIN borrar el token — si el reclamo
// conflictivo se libera antes del vencimiento, el reintento funciona.
// Decisión deliberada, no un olvido (documentada en DESIGN.md).
//
// Las sesiones del usuario se revocan ANTES de mutar el email: con el
// ledger caído se aborta el cambio en vez de dejar sesiones viejas
// vivas sobre la identidad nueva.
func (s *Service) ConfirmEmailChange(ctx context.Context, rawToken string) error {
	t, err := s.issuer.Consume(ctx, rawToken)
	if err != nil {
		return err
	}
	if t.Payload == nil || !validEmail(*t.Payload) {
		_ = s.issuer.Discard(ctx, t)
		return ErrValidation
	}
	newAddr := *t.Payload

	u, err := s.users.GetByID(ctx, t.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.issuer.Discard(ctx, t)
			return ErrIdentityGone
		}
		return err
	}

	taken, err := s.users.EmailTaken(ctx, newAddr, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrConflict
	}

	if err := s.revokeSessions(ctx, u.ID); err != nil {
		return err
	}
	if err := s.users.UpdateEmail(ctx, u.ID, newAddr); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			// Perdimos la carrera contra el UNIQUE: mismo trato que el
			// chequeo de arriba, token vivo para reintentar
			return ErrConflict
		}
		return err
	}
	if err := s.issuer.Discard(ctx, t); err != nil {
		return err
	}
	s.log.Info("email changed", logger.UserID(u.ID))
	return nil
}
