package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const coworkerColumns = `id, name, agent, status, description, philosophy, visual_description, created_at`

// CreateCoworker inserts a new coworker and sets its ID
func (db *DB) CreateCoworker(ctx context.Context, c *Coworker) error {
	id, err := db.insert(ctx, `
		INSERT INTO coworkers (name, agent, status, description, philosophy, visual_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Agent, c.Status, c.Description, c.Philosophy, c.VisualDescription, c.CreatedAt.UTC())
	if err != nil {
		if db.dialect.isUniqueViolation(err) {
			return fmt.Errorf("coworker %q: %w", c.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("create coworker %q: %w", c.Name, err)
	}
	c.ID = id
	return nil
}

// GetCoworker retrieves a coworker by name
func (db *DB) GetCoworker(ctx context.Context, name string) (*Coworker, error) {
	row := db.queryRow(ctx, `SELECT `+coworkerColumns+` FROM coworkers WHERE name = ?`, name)
	c, err := scanCoworker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coworker %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get coworker %q: %w", name, err)
	}
	return c, nil
}

// CoworkerExists reports whether a coworker with the given name exists
func (db *DB) CoworkerExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := db.queryRow(ctx, `SELECT COUNT(*) FROM coworkers WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check coworker %q: %w", name, err)
	}
	return n > 0, nil
}

// ListCoworkers returns every coworker ordered by name
func (db *DB) ListCoworkers(ctx context.Context) ([]*Coworker, error) {
	rows, err := db.query(ctx, `SELECT `+coworkerColumns+` FROM coworkers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list coworkers: %w", err)
	}
	defer rows.Close()

	var coworkers []*Coworker
	for rows.Next() {
		c, err := scanCoworker(rows)
		if err != nil {
			return nil, fmt.Errorf("list coworkers: %w", err)
		}
		coworkers = append(coworkers, c)
	}
	return coworkers, rows.Err()
}

// UpdateCoworkerStatus sets or clears the free-text status of a coworker
func (db *DB) UpdateCoworkerStatus(ctx context.Context, name string, status *string) error {
	result, err := db.exec(ctx, `UPDATE coworkers SET status = ? WHERE name = ?`, status, name)
	if err != nil {
		return fmt.Errorf("update coworker %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update coworker %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("coworker %q: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteCoworker deletes the coworker row only. Related records are the
// caller's responsibility.
func (db *DB) DeleteCoworker(ctx context.Context, id int64) error {
	return db.execOne(ctx, "delete coworker", id, `DELETE FROM coworkers WHERE id = ?`, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoworker(row rowScanner) (*Coworker, error) {
	c := &Coworker{}
	if err := row.Scan(&c.ID, &c.Name, &c.Agent, &c.Status, &c.Description, &c.Philosophy, &c.VisualDescription, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
