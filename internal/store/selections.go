package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveSelection remembers the association a user last worked on.
func SaveSelection(ctx context.Context, db *sql.DB, email, associationID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO selections (email, association_id) VALUES (?, ?)
		 ON CONFLICT(email) DO UPDATE SET association_id = excluded.association_id,
		                                  updated_at = CURRENT_TIMESTAMP`,
		email, associationID,
	)
	if err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}
	return nil
}

// GetSelection returns the remembered association ID, or "" if none.
func GetSelection(ctx context.Context, db *sql.DB, email string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		`SELECT association_id FROM selections WHERE email = ?`, email,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting selection: %w", err)
	}
	return id, nil
}
