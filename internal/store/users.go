package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/user-weather-hub/internal/users"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	email      TEXT NOT NULL,
	username   TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT 0,
	country    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_country ON users (country);
CREATE INDEX IF NOT EXISTS idx_users_name ON users (first_name, last_name);
`

const userColumns = `id, first_name, last_name, email, username, active, country, created_at`

// SQLiteUserStore persists users in a SQLite database.
type SQLiteUserStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteUserStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteUserStore{db: db}, nil
}

// Create inserts a user and returns the stored record.
func (s *SQLiteUserStore) Create(ctx context.Context, in users.NewUser) (users.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (first_name, last_name, email, username, active, country, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.FirstName, in.LastName, in.Email, in.Username, in.Active, in.Country, now,
	)
	if err != nil {
		return users.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return users.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.Get(ctx, id)
}

// Get loads a single user by id.
func (s *SQLiteUserStore) Get(ctx context.Context, id int64) (users.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return users.User{}, ErrNotFound
	}
	return u, err
}

// ListByCountry returns users with the given country ordered by id.
// An empty country returns all users.
func (s *SQLiteUserStore) ListByCountry(ctx context.Context, country string) ([]users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if country != "" {
		query += ` WHERE country = ?`
		args = append(args, country)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var result []users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// CountByName groups users by exact first and last name.
func (s *SQLiteUserStore) CountByName(ctx context.Context, activeOnly bool) ([]users.NameCount, error) {
	query := `SELECT first_name, last_name, COUNT(*) FROM users`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` GROUP BY first_name, last_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("group users by name: %w", err)
	}
	defer rows.Close()

	var result []users.NameCount
	for rows.Next() {
		var nc users.NameCount
		if err := rows.Scan(&nc.FirstName, &nc.LastName, &nc.Count); err != nil {
			return nil, fmt.Errorf("scan name group: %w", err)
		}
		result = append(result, nc)
	}
	return result, rows.Err()
}

// Ping checks that the database is reachable.
func (s *SQLiteUserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteUserStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (users.User, error) {
	var u users.User
	err := r.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Username, &u.Active, &u.Country, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, err
	}
	if err != nil {
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
