//go:build postgres

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresUserStore is a PostgreSQL-backed implementation of UserStore.
type PostgresUserStore struct {
	db *sql.DB
}

// NewPostgresUserStore opens (and migrates) a PostgreSQL-backed user store.
func NewPostgresUserStore(dsn string) (*PostgresUserStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			user_tracking_id TEXT NOT NULL DEFAULT '',
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &PostgresUserStore{db: db}, nil
}

// NewPostgresUserStoreFromDB creates a store using an existing DB connection.
func NewPostgresUserStoreFromDB(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Close() error { return s.db.Close() }

func (s *PostgresUserStore) Create(ctx context.Context, user *User) error {
	if user == nil || user.Username == "" {
		return ErrUserNotFound
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, first_name, last_name, language, user_tracking_id, is_staff, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID, user.Username, user.Email, user.FullName, user.FirstName, user.LastName,
		user.Language, user.UserTrackingID, user.IsStaff, user.IsSuperuser,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, nil
	}
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, first_name, last_name, language, user_tracking_id, is_staff, is_superuser, created_at, updated_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.FirstName, &u.LastName,
		&u.Language, &u.UserTrackingID, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *User) error {
	if user == nil || user.Username == "" {
		return ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, full_name = $2, first_name = $3, last_name = $4, language = $5, user_tracking_id = $6, is_staff = $7, is_superuser = $8, updated_at = $9
		WHERE username = $10
	`,
		user.Email, user.FullName, user.FirstName, user.LastName, user.Language, user.UserTrackingID,
		user.IsStaff, user.IsSuperuser, time.Now().UTC(), user.Username,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresUserStore) UpdateEmail(ctx context.Context, username, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $1, updated_at = $2 WHERE username = $3
	`, email, time.Now().UTC(), username)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return requireRowAffected(res)
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
