package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetJWTSecret retrieves the console session signing secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return getOrCreateSetting(ctx, db, "jwt_secret")
}

// GetTokenKey returns the key that encrypts backend tokens at rest,
// generating it on first use.
func GetTokenKey(ctx context.Context, db *sql.DB) (*[32]byte, error) {
	value, err := getOrCreateSetting(ctx, db, "token_key")
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("token_key setting is corrupt")
	}

	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// getOrCreateSetting uses INSERT OR IGNORE + re-SELECT to avoid a TOCTOU race
// on concurrent startup.
func getOrCreateSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	// Always read back (either our insert or the existing value).
	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return value, nil
}
