package pg

import (
	"context"
	"time"
)

// Touch upsert de la última actividad de una sesión. La frecuencia la
// acota internal/track; acá solo escribimos.
func (s *Store) Touch(ctx context.Context, jti, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_activity (jti, user_id, last_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti)
		DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
	`, jti, userID, at)
	return err
}

// ActiveSessionIDs retorna los jtis con actividad dentro de la vida
// natural de una credencial. Es el directorio de sesiones que usa el
// router para revocar todo lo del usuario.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT jti FROM session_activity
		WHERE user_id = $1 AND last_seen_at > NOW() - INTERVAL '30 days'
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var jti string
		if err := rows.Scan(&jti); err != nil {
			return nil, err
		}
		out = append(out, jti)
	}
	return out, rows.Err()
}
