package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

const apiKeyBytes = 32 // 256-bit keys

// KeyPrefix starts every raw key.
const KeyPrefix = "vg_"

// APIKey is the stored representation of an API key (no raw key).
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create generates a new API key for a user.
// Returns the raw key (shown once to user) and the stored record.
func (s *APIKeyStore) Create(userID, name string) (string, *APIKey, error) {
	raw, err := generateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}

	prefix := raw[:8]
	hash := hashAPIKey(raw)

	result, err := s.db.Exec(
		"INSERT INTO api_keys (user_id, name, key_prefix, key_hash) VALUES (?, ?, ?, ?)",
		userID, name, prefix, hash,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	key := &APIKey{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyPrefix: prefix,
	}

	return raw, key, nil
}

// List returns a user's API keys (without the raw key).
func (s *APIKeyStore) List(userID string) ([]APIKey, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, name, key_prefix, created_at, last_used_at FROM api_keys WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("closing rows: %v\n", cerr)
		}
	}()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes one of a user's API keys.
func (s *APIKeyStore) Delete(id int64, userID string) error {
	result, err := s.db.Exec("DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("key %d: %w", id, ErrNotFound)
	}

	return nil
}

// Validate checks a raw API key against stored hashes and updates
// last_used_at. Returns the key's owner, or nil if the key is unknown.
func (s *APIKeyStore) Validate(rawKey string) (*User, error) {
	hash := hashAPIKey(rawKey)

	result, err := s.db.Exec(
		"UPDATE api_keys SET last_used_at = ? WHERE key_hash = ?",
		time.Now(), hash,
	)
	if err != nil {
		return nil, fmt.Errorf("validating key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	u, err := scanUser(s.db.QueryRow(
		`SELECT u.id, u.organization_id, u.email, u.name, u.role, u.created_at
		 FROM users u JOIN api_keys k ON k.user_id = u.id
		 WHERE k.key_hash = ?`, hash,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading key owner: %w", err)
	}
	return u, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
