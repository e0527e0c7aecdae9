package repository

import "errors"

// Errores comunes de los repositorios.
var (
	// ErrNotFound indica que el registro no existe.
	ErrNotFound = errors.New("repository: not found")

	// ErrEmailTaken indica que el email ya pertenece a otra cuenta.
	ErrEmailTaken = errors.New("repository: email already taken")
)

// IsNotFound helper para verificar si el error es por registro inexistente.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
