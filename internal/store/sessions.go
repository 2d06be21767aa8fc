package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

// Session is a signed-in console session holding the backend bearer token.
type Session struct {
	ID           string
	Email        string
	BackendToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// ErrTokenDecrypt is returned when a stored backend token cannot be opened,
// usually because the token key was rotated.
var ErrTokenDecrypt = errors.New("backend token cannot be decrypted")

// CreateSession stores a session, encrypting its backend token with key.
func CreateSession(ctx context.Context, db *sql.DB, key *[32]byte, s Session) error {
	sealed, err := sealToken(key, s.BackendToken)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, email, backend_token, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Email, sealed, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession returns an unexpired session by ID, or nil if there is none.
func GetSession(ctx context.Context, db *sql.DB, key *[32]byte, id string) (*Session, error) {
	s := &Session{ID: id}
	var sealed []byte
	err := db.QueryRowContext(ctx,
		`SELECT email, backend_token, created_at, expires_at
		 FROM sessions WHERE id = ? AND expires_at > ?`, id, time.Now().UTC(),
	).Scan(&s.Email, &sealed, &s.CreatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	s.BackendToken, err = openToken(key, sealed)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession removes a session.
func DeleteSession(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and reports how
// many were removed.
func DeleteExpiredSessions(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func sealToken(key *[32]byte, token string) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, key), nil
}

func openToken(key *[32]byte, sealed []byte) (string, error) {
	if len(sealed) < 24+secretbox.Overhead {
		return "", ErrTokenDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, key)
	if !ok {
		return "", ErrTokenDecrypt
	}
	return string(plain), nil
}
