package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
)

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, email_verified_at, created_at
		FROM account WHERE id = $1
	`, id))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, email_verified_at, created_at
		FROM account WHERE email = $1
	`, email))
}

func (s *Store) EmailTaken(ctx context.Context, email, excludeUserID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM account WHERE email = $1 AND id <> $2)
	`, email, excludeUserID).Scan(&exists)
	return exists, err
}

// MarkEmailVerified idempotente: verificar dos veces no cambia nada.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE account SET email_verified_at = COALESCE(email_verified_at, $2)
		WHERE id = $1
	`, userID, at)
	return err
}

func (s *Store) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE account SET email = $2, email_verified_at = NOW() WHERE id = $1
	`, userID, newEmail)
	if err != nil {
		// 23505 = unique_violation: otro reclamó el email antes que nosotros
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	_, err := s.pool.Exec(ctx, `UPDATE account SET password_hash = $2 WHERE id = $1`, userID, hash)
	return err
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM account WHERE id = $1`, userID)
	return err
}
