// Package vault implementa el vault de recovery codes de 2FA.
package vault

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
	"github.com/forense-lab/peritia-trust/internal/observability/logger"
	"github.com/forense-lab/peritia-trust/internal/security/password"
	"github.com/forense-lab/peritia-trust/internal/security/recovery"
)

// ErrMalformedCode indica input que ni siquiera tiene la forma de un
// code (se rechaza antes de tocar la DB).
var ErrMalformedCode = errors.New("vault: malformed recovery code")

// Status es el estado del set de codes de un usuario.
type Status struct {
	Total    int
	Used     int
	Unused   int
	HasCodes bool

	// CodeStatus siempre tiene exactamente 16 slots; los primeros
	// min(unused, 16) son true. El cap es defensivo: unused > 16 solo
	// puede pasar salteando el invariante de Regenerate, y aun así el
	// array de display no crece.
	CodeStatus [recovery.SetSize]bool
}

// Vault gestiona el ciclo de vida de los recovery codes. El hashing es
// argon2id con parámetros propios (más baratos que login, ver
// password.RecoveryCode).
type Vault struct {
	codes  repository.RecoveryCodeRepository
	params password.Params
	log    *zap.Logger
}

func New(codes repository.RecoveryCodeRepository) *Vault {
	return &Vault{
		codes:  codes,
		params: password.RecoveryCode,
		log:    logger.Named("vault"),
	}
}

// Regenerate descarta el set previo completo y genera uno nuevo de 16.
// Retorna los plaintexts formateados para mostrar UNA sola vez; después
// solo quedan los hashes. El caller debe rate-limitear esta operación
// (scope private): invalida todos los codes existentes del usuario.
func (v *Vault) Regenerate(ctx context.Context, userID string) ([]string, error) {
	plain, err := recovery.NewSet()
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(plain))
	for i, c := range plain {
		h, err := password.Hash(v.params, c)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	if err := v.codes.ReplaceAll(ctx, userID, hashes); err != nil {
		return nil, err
	}

	display := make([]string, len(plain))
	for i, c := range plain {
		display[i] = recovery.Format(c)
	}
	v.log.Info("recovery codes regenerated",
		logger.UserID(userID), logger.Count(len(display)))
	return display, nil
}

// Verify prueba el candidate contra los codes sin usar del usuario.
// La comparación es por hash en tiempo constante, nunca igualdad de
// strings, y el flip del flag es condicional en la DB: dos Verify
// concurrentes con el mismo code no pueden ganar los dos.
func (v *Vault) Verify(ctx context.Context, userID, candidate string) (bool, error) {
	code := recovery.Normalize(candidate)
	if len(code) != recovery.CodeLen {
		return false, ErrMalformedCode
	}

	unused, err := v.codes.ListUnused(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, c := range unused {
		if !password.Verify(code, c.CodeHash) {
			continue
		}
		won, err := v.codes.MarkUsed(ctx, c.ID, time.Now().UTC())
		if err != nil {
			return false, err
		}
		if !won {
			// Otro request consumió este code entre el List y el flip
			v.log.Warn("recovery code verify lost the flip race", logger.UserID(userID))
			return false, nil
		}
		v.log.Info("recovery code consumed", logger.UserID(userID))
		return true, nil
	}
	return false, nil
}

// StatusFor arma el estado de display del set del usuario.
func (v *Vault) StatusFor(ctx context.Context, userID string) (*Status, error) {
	total, used, err := v.codes.Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := &Status{
		Total:    total,
		Used:     used,
		Unused:   total - used,
		HasCodes: total > 0,
	}
	shown := st.Unused
	if shown > recovery.SetSize {
		shown = recovery.SetSize
	}
	for i := 0; i < shown; i++ {
		st.CodeStatus[i] = true
	}
	return st, nil
}

// Purge elimina el set entero (baja de cuenta).
func (v *Vault) Purge(ctx context.Context, userID string) error {
	return v.codes.DeleteAll(ctx, userID)
}
