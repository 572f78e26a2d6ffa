package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  firstname TEXT NOT NULL DEFAULT '',
  lastname TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL UNIQUE,
  username TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  profile_image TEXT
);

CREATE TABLE IF NOT EXISTS items (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  price TEXT NOT NULL,
  status TEXT NOT NULL
);
`

// SQLiteDB is the embedded single-file store.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens the SQLite database and bootstraps the schema.
func OpenSQLite(path string) (*SQLiteDB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	dsn := (&url.URL{Scheme: "file", Path: path}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func (s *SQLiteDB) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// where renders the filter for key. Ids are validated before they reach SQL.
func (s *SQLiteDB) where(key UserKey) (string, string, error) {
	if key.IsID() {
		if !validUUID(key.Value()) {
			return "", "", ErrInvalidID
		}
		return "id = ?", key.Value(), nil
	}
	return "email = ?", key.Value(), nil
}

func (s *SQLiteDB) FindUser(ctx context.Context, key UserKey) (*User, error) {
	cond, arg, err := s.where(key)
	if err != nil {
		return nil, err
	}
	var (
		u   User
		ref sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT id, firstname, lastname, email, username, password, profile_image FROM users WHERE "+cond+" LIMIT 1", arg).
		Scan(&u.ID, &u.Firstname, &u.Lastname, &u.Email, &u.Username, &u.Password, &ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		u.ProfileImage = &ref.String
	}
	return &u, nil
}

func (s *SQLiteDB) SetProfileImage(ctx context.Context, key UserKey, ref *string) (int64, error) {
	cond, arg, err := s.where(key)
	if err != nil {
		return 0, err
	}
	value := sql.NullString{}
	if ref != nil {
		value = sql.NullString{String: *ref, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET profile_image = ? WHERE "+cond, value, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) CreateUser(ctx context.Context, user User) (string, error) {
	user.ID = uuid.NewString()
	user.Email = NormalizeEmail(user.Email)
	var ref any
	if user.ProfileImage != nil {
		ref = *user.ProfileImage
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, firstname, lastname, email, username, password, profile_image) VALUES (?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Firstname, user.Lastname, user.Email, user.Username, user.Password, ref)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *SQLiteDB) UpdateUser(ctx context.Context, key UserKey, patch UserPatch) (int64, error) {
	cond, arg, err := s.where(key)
	if err != nil {
		return 0, err
	}
	var (
		sets []string
		args []any
	)
	if patch.Firstname != nil {
		sets = append(sets, "firstname = ?")
		args = append(args, *patch.Firstname)
	}
	if patch.Lastname != nil {
		sets = append(sets, "lastname = ?")
		args = append(args, *patch.Lastname)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, NormalizeEmail(*patch.Email))
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("empty user patch")
	}
	args = append(args, arg)

	res, err := s.db.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE "+cond, args...)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("update user: %w", ErrDuplicate)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) DeleteUser(ctx context.Context, id string) (int64, error) {
	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) ListItems(ctx context.Context, skip, limit int64) ([]Item, error) {
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, price, status FROM items ORDER BY seq LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Item, 0)
	for rows.Next() {
		var (
			item  Item
			price string
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &price, &item.Status); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %s price: %w", item.ID, err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *SQLiteDB) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count)
	return count, err
}

func (s *SQLiteDB) CreateItem(ctx context.Context, item Item) (string, error) {
	item.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO items (id, name, category, price, status) VALUES (?, ?, ?, ?, ?)",
		item.ID, item.Name, item.Category, item.Price.String(), item.Status)
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

func (s *SQLiteDB) UpdateItem(ctx context.Context, id string, patch ItemPatch) (int64, error) {
	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, patch.Price.String())
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if len(sets) == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM items WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return 1, nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) DeleteItem(ctx context.Context, id string) (int64, error) {
	if !validUUID(id) {
		return 0, ErrInvalidID
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Store = (*SQLiteDB)(nil)
