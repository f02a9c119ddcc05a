package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repo stores named JSON values in the workspace database.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Value is one stored entry.
type Value struct {
	Name      string
	JSON      []byte
	UpdatedAt string
}

func (r Repo) GetValue(ctx context.Context, name string) ([]byte, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT value_json FROM kv_values WHERE name=?`, name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (r Repo) PutValue(ctx context.Context, name string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO kv_values(name,value_json,updated_at) VALUES (?,?,?)
ON CONFLICT(name) DO UPDATE SET value_json=excluded.value_json, updated_at=excluded.updated_at`, name, string(value), now)
	return err
}

func (r Repo) DeleteValue(ctx context.Context, name string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM kv_values WHERE name=?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListValues returns stored entries ordered by name, without their payloads
// when withPayload is false.
func (r Repo) ListValues(ctx context.Context, withPayload bool) ([]Value, error) {
	query := `SELECT name,'',updated_at FROM kv_values ORDER BY name`
	if withPayload {
		query = `SELECT name,value_json,updated_at FROM kv_values ORDER BY name`
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Value
	for rows.Next() {
		var v Value
		var payload string
		if err := rows.Scan(&v.Name, &payload, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if withPayload {
			v.JSON = []byte(payload)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}
