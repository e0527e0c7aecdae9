package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
)

// ReplaceAll reemplaza el set completo del usuario dentro de una
// transacción: o se ve el set viejo entero o el nuevo entero, nunca una
// mezcla.
func (s *Store) ReplaceAll(ctx context.Context, userID string, hashes []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_code WHERE user_id = $1`, userID); err != nil {
		return err
	}

	var b pgx.Batch
	for _, h := range hashes {
		b.Queue(`INSERT INTO recovery_code (user_id, code_hash) VALUES ($1, $2)`, userID, h)
	}
	br := tx.SendBatch(ctx, &b)
	for range hashes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUnused(ctx context.Context, userID string) ([]repository.RecoveryCode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, code_hash, used_at, created_at
		FROM recovery_code
		WHERE user_id = $1 AND used_at IS NULL
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.RecoveryCode
	for rows.Next() {
		var c repository.RecoveryCode
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkUsed flip condicional: solo gana el primer caller, el WHERE
// used_at IS NULL decide en el servidor, no en una lectura previa.
func (s *Store) MarkUsed(ctx context.Context, codeID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE recovery_code SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`, codeID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Counts(ctx context.Context, userID string) (int, int, error) {
	var total, used int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(used_at)
		FROM recovery_code WHERE user_id = $1
	`, userID).Scan(&total, &used)
	return total, used, err
}

func (s *Store) DeleteAll(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM recovery_code WHERE user_id = $1`, userID)
	return err
}
