package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forense-lab/peritia-trust/internal/domain/repository"
)

// Replace emite un token pisando el anterior del mismo (identifier, kind).
// El UNIQUE (identifier, kind) + ON CONFLICT hace el replace en una sola
// sentencia: no hay ventana en la que convivan dos tokens vivos.
func (s *Store) Replace(ctx context.Context, input repository.ReplaceTokenInput) (*repository.SingleUseToken, error) {
	now := time.Now().UTC()
	t := &repository.SingleUseToken{
		Identifier: input.Identifier,
		Kind:       input.Kind,
		TokenHash:  input.TokenHash,
		Payload:    input.Payload,
		ExpiresAt:  now.Add(input.TTL),
		CreatedAt:  now,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO single_use_token (identifier, kind, token_hash, payload, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identifier, kind)
		DO UPDATE SET token_hash = EXCLUDED.token_hash,
					  payload    = EXCLUDED.payload,
					  expires_at = EXCLUDED.expires_at,
					  created_at = EXCLUDED.created_at
		RETURNING id
	`, t.Identifier, string(t.Kind), t.TokenHash, t.Payload, t.ExpiresAt, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) GetByHash(ctx context.Context, tokenHash string) (*repository.SingleUseToken, error) {
	var t repository.SingleUseToken
	var kind string
	err := s.pool.QueryRow(ctx, `
		SELECT id, identifier, kind, token_hash, payload, expires_at, created_at
		FROM single_use_token WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.Identifier, &kind, &t.TokenHash, &t.Payload, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	t.Kind = repository.TokenKind(kind)
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM single_use_token WHERE id = $1`, id)
	return err
}

func (s *Store) DeleteByIdentifier(ctx context.Context, identifier string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM single_use_token WHERE identifier = $1`, identifier)
	return err
}

// DeleteExpired borra tokens vencidos (janitor periódico).
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM single_use_token WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
