// Package email es el colaborador de despacho de mails del subsistema.
//
// Fire-and-forget: el subsistema entrega destinatario + token y sigue;
// el render de templates y la entrega real son problema de este paquete
// (o del servicio externo que haya detrás). Un fallo de envío jamás
// hace fallar la operación de negocio que lo disparó.
package email

import (
	"context"
	"time"
)

// Kind identifica qué flujo dispara el mail.
type Kind string

const (
	KindVerification    Kind = "verification"
	KindEmailChange     Kind = "email_change"
	KindPasswordReset   Kind = "password_reset"
	KindAccountDeletion Kind = "account_deletion"
)

// Message es todo lo que el subsistema aporta: a quién, qué flujo, el
// token crudo y cuánto vive. Nada de templates acá.
type Message struct {
	To    string
	Kind  Kind
	Token string
	TTL   time.Duration
}

// Dispatcher despacha un mensaje. No retorna error: fire-and-forget,
// los fallos se loguean dentro del driver.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}
