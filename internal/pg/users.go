package pg

import (
	"context"
	"database/sql"
	"errors"

	"greening/internal/apperrors"
)

// PasswordHash возвращает bcrypt-хэш пользователя или NotFound.
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.DB.QueryRowContext(ctx, `select "password_hash" from "users" where "username" = $1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NotFound("user", err)
	}
	return hash, err
}

func (s *Store) UpsertUser(ctx context.Context, username, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `
insert into "users" ("username", "password_hash") values ($1, $2)
on conflict ("username") do update set "password_hash" = excluded."password_hash"`,
		username, passwordHash)
	return err
}
