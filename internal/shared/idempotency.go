package shared

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

var (
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = NewError(ErrConflict, "idempotency_replay", "idempotent request already processed")
	// ErrIdempotencyMismatch indicates a key reused with a different payload.
	ErrIdempotencyMismatch = NewError(ErrConflict, "idempotency_mismatch", "idempotency key reused with a different request")
)

// Fingerprint hashes the JSON form of a request payload.
func Fingerprint(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// CheckAndInsert ensures key uniqueness per module. A replayed key with the
// same fingerprint yields ErrIdempotencyConflict, a different one
// ErrIdempotencyMismatch.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module, fingerprint string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, fingerprint, created_at) VALUES ($1, $2, $3, $4)`, key, module, fingerprint, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			var stored string
			if err := s.pool.QueryRow(ctx, `SELECT fingerprint FROM idempotency_keys WHERE key=$1`, key).Scan(&stored); err != nil {
				return err
			}
			if stored != fingerprint {
				return ErrIdempotencyMismatch
			}
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1`, key)
	return err
}
