package repository

import (
	"context"
	"time"
)

// User es la vista mínima de la cuenta que necesita este subsistema.
// El resto del perfil (casos, permisos, etc.) vive en la aplicación.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// EmailVerified indica si la cuenta ya confirmó su email.
func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }

// UserRepository define las operaciones de cuentas que consume el router
// de verificación. No es el repositorio completo de usuarios de la app.
type UserRepository interface {
	// GetByID busca por id. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail busca por email normalizado. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// EmailTaken verifica si el email pertenece a alguna cuenta distinta
	// de excludeUserID (chequeo TOCTOU en cambio de email).
	EmailTaken(ctx context.Context, email, excludeUserID string) (bool, error)

	// MarkEmailVerified marca el email como verificado. Idempotente.
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error

	// UpdateEmail cambia el email de la cuenta. Retorna ErrEmailTaken si
	// otro lo reclamó (respaldado por el UNIQUE de la tabla).
	UpdateEmail(ctx context.Context, userID, newEmail string) error

	// UpdatePasswordHash reemplaza el hash de la contraseña.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// Delete elimina la cuenta. Los tokens y codes asociados caen por
	// cascade o cleanup del caller.
	Delete(ctx context.Context, userID string) error
}
