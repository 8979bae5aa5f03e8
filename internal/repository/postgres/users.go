package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/parlour-dev/parlour/backend/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	id := uuid.NewString()
	args := []any{id, user.Name, user.Email, user.PasswordHash, user.Role}
	if err := s.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt); err != nil {
		return mapError(err, "failed to insert user", goerr.V("email", user.Email))
	}

	user.ID = id
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT name, email, password_hash, role, created_at
		FROM users WHERE id = $1
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user := &domain.User{
		ID: id,
	}

	dst := []any{&user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt}
	if err := s.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, mapError(err, "failed to get user", goerr.V("id", id))
	}

	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, password_hash, role, created_at
		FROM users WHERE email = $1
	`

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user := &domain.User{
		Email: email,
	}

	dst := []any{&user.ID, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt}
	if err := s.dbpool.QueryRowContext(ctx, query, email).Scan(dst...); err != nil {
		return nil, mapError(err, "failed to get user", goerr.V("email", email))
	}

	return user, nil
}
