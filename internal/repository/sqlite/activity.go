package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/probetas/pkg/models"
)

// Record appends an activity entry. userID may be empty for anonymous actions.
func (r *SQLiteRepo) Record(ctx context.Context, userID, action, details string) error {
	if action == "" {
		return fmt.Errorf("activity action is empty")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO user_activities (user_id, action, details, created) VALUES (?, ?, ?, ?)`,
		nullString(userID), action, details, now())
	return err
}

// ListActivities returns activities newest first, joined with the acting
// user's name. An empty userID lists every user's activity.
func (r *SQLiteRepo) ListActivities(ctx context.Context, userID string, limit, offset int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT a.id, a.user_id, a.action, a.details, a.created, u.username, u.full_name
		FROM user_activities a LEFT JOIN users u ON u.id = a.user_id`
	args := []any{}
	if userID != "" {
		query += ` WHERE a.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY a.created DESC, a.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var (
			a                 models.Activity
			uid, uname, ufull sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Details, &a.Created, &uname, &ufull); err != nil {
			return nil, err
		}
		a.UserID, a.Username, a.FullName = uid.String, uname.String, ufull.String

		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) CountActivities(ctx context.Context, userID string) (int64, error) {
	var row *sql.Row
	if userID == "" {
		row = r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM user_activities`)
	} else {
		row = r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM user_activities WHERE user_id = ?`, userID)
	}

	var cnt int64
	if err := row.Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}
