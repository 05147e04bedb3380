package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository"
)

const userColumns = `id, username, email, password_hash, full_name, role, created, updated`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("user is nil")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	id := newID()
	ts := now()
	_, err := r.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("create user %q: %w", u.Username, repository.ErrDuplicate)
		}
		return "", err
	}

	u.ID, u.Created, u.Updated = id, ts, ts
	return id, nil
}

// UpsertUser creates the user or, when the username already exists, replaces
// its e-mail, password, name and role. It returns the stored id.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *models.User) (string, error) {
	if u == nil {
		return "", fmt.Errorf("user is nil")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	ts := now()
	row := r.conn.QueryRow(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET email = excluded.email, password_hash = excluded.password_hash,
		full_name = excluded.full_name, role = excluded.role, updated = excluded.updated
		RETURNING id`,
		newID(), u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, ts, ts)

	var id string
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("upsert user %q: %w", u.Username, repository.ErrDuplicate)
		}
		return "", err
	}

	u.ID = id
	return id, nil
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *SQLiteRepo) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	row := r.conn.QueryRow(ctx, query, arg)
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Created, &u.Updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return &u, nil
}

// UserExists reports whether any user has the given username or e-mail.
func (r *SQLiteRepo) UserExists(ctx context.Context, username, email string) (bool, error) {
	var n int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM users WHERE username = ? OR email = ?`, username, email)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
