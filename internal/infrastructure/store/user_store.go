package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/phone-storefront/internal/identity"
)

// PostgresUserStore implements identity.UserStore
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, a *identity.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.CreatedAt)
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) UserByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return s.one(ctx, `WHERE email = $1`, email)
}

func (s *PostgresUserStore) UserByID(ctx context.Context, id string) (*identity.Account, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

func (s *PostgresUserStore) one(ctx context.Context, where string, arg string) (*identity.Account, error) {
	var a identity.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at FROM users `+where, arg).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &a, nil
}
