// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and user queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable user repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a verified connection pool to PostgreSQL.
// Call once at startup from main.go; the returned store is safe for
// concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const userColumns = "id, full_name, username, email, password_hash, role, created_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

// CreateUser inserts a new user. Username and email are stored lower-cased.
// Unique violations map to ErrDuplicateUsername / ErrDuplicateEmail by
// constraint name.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, full_name, username, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		u.ID, u.FullName, strings.ToLower(u.Username), strings.ToLower(u.Email),
		u.PasswordHash, string(u.Role), u.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrDuplicateUsername
		case "users_email_key":
			return ErrDuplicateEmail
		}
	}
	return err
}

// GetUserByUsernameOrEmail fetches a user by username or email,
// case-insensitively. Returns ErrUserNotFound when no row matches.
func (s *PostgresStore) GetUserByUsernameOrEmail(ctx context.Context, identity string) (*User, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	return scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1 OR email = $1",
		identity))
}

// GetUserByID fetches a user by primary key. Returns ErrUserNotFound when no
// row matches.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}
