package trust

import "errors"

// Taxonomía de errores de negocio del subsistema. Siempre se retornan
// como valores tipados, nunca como panics: la capa HTTP los mapea a
// mensajes seguros sin inspeccionar tipos internos. Todo lo que no sea
// uno de estos sentinels es falla de infraestructura (la única categoría
// reintentable) y se propaga envuelto con %w.
var (
	// ErrValidation input malformado, rechazado antes de tocar un store.
	ErrValidation = errors.New("trust: invalid input")

	// ErrNotFound el token no existe. Terminal: pedir uno nuevo.
	ErrNotFound = errors.New("trust: token not found")

	// ErrExpired el token venció. Terminal; el row ya fue borrado.
	ErrExpired = errors.New("trust: token expired")

	// ErrIdentityGone la identidad asociada ya no existe. Terminal; el
	// token huérfano ya fue borrado.
	ErrIdentityGone = errors.New("trust: identity no longer exists")

	// ErrConflict el estado destino cambió entre emisión y consumo
	// (ventana TOCTOU). Terminal pero no necesariamente adversarial.
	ErrConflict = errors.New("trust: target state changed since issuance")

	// ErrForbidden el recurso no pertenece al caller. Terminal, sin
	// mutación.
	ErrForbidden = errors.New("trust: ownership mismatch")

	// ErrRateLimited intento denegado por el limiter. Terminal para
	// este intento; reintentar después de ResetAt.
	ErrRateLimited = errors.New("trust: rate limited")
)
