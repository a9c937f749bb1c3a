//go:build sqlite

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteUserStore is a SQLite-backed implementation of UserStore.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewSQLiteUserStore opens (and migrates) a SQLite-backed user store.
func NewSQLiteUserStore(dsn string) (*SQLiteUserStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			user_tracking_id TEXT NOT NULL DEFAULT '',
			is_staff INTEGER NOT NULL DEFAULT 0,
			is_superuser INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &SQLiteUserStore{db: db}, nil
}

// NewSQLiteUserStoreFromDB creates a store using an existing DB connection.
func NewSQLiteUserStoreFromDB(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) Close() error { return s.db.Close() }

func (s *SQLiteUserStore) Create(ctx context.Context, user *User) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Username, user.Email, user.FullName, user.FirstName, user.LastName,
		user.Language, user.UserTrackingID, boolToInt(user.IsStaff), boolToInt(user.IsSuperuser),
		user.CreatedAt.Format(time.RFC3339Nano), user.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if sqliteIsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, nil
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, first_name, last_name, language, user_tracking_id, is_staff, is_superuser, created_at, updated_at
		FROM users WHERE username = ?
	`, username))
}

func (s *SQLiteUserStore) Update(ctx context.Context, user *User) error {
	if user == nil || user.Username == "" {
		return ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, full_name = ?, first_name = ?, last_name = ?, language = ?, user_tracking_id = ?, is_staff = ?, is_superuser = ?, updated_at = ?
		WHERE username = ?
	`,
		user.Email, user.FullName, user.FirstName, user.LastName, user.Language, user.UserTrackingID,
		boolToInt(user.IsStaff), boolToInt(user.IsSuperuser),
		time.Now().UTC().Format(time.RFC3339Nano), user.Username,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRowAffected(res)
}

func (s *SQLiteUserStore) UpdateEmail(ctx context.Context, username, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, updated_at = ? WHERE username = ?
	`, email, time.Now().UTC().Format(time.RFC3339Nano), username)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return requireRowAffected(res)
}

func (s *SQLiteUserStore) scanUser(row *sql.Row) (*User, error) {
	var (
		u                    User
		isStaff, isSuperuser int
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.FirstName, &u.LastName,
		&u.Language, &u.UserTrackingID, &isStaff, &isSuperuser, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.IsStaff = isStaff != 0
	u.IsSuperuser = isSuperuser != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		u.UpdatedAt = t
	}
	return &u, nil
}

func sqliteIsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "unique")
}
