package repository

import (
	"context"
	"time"
)

// ActivityRecorder persiste el "última vez vista" de una sesión.
// La frecuencia de escritura la acota internal/track, no este repo.
type ActivityRecorder interface {
	// Touch registra actividad de la sesión (upsert por jti).
	Touch(ctx context.Context, jti, userID string, at time.Time) error
}
