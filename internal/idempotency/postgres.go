package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps records in the idempotency_keys table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Reserve claims the key with a single upsert that only overwrites expired
// rows, so two requests racing on the same key cannot both win.
func (s *PostgresStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)

	const claim = `
		INSERT INTO idempotency_keys (id, key, fingerprint, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			key = EXCLUDED.key,
			fingerprint = EXCLUDED.fingerprint,
			status = EXCLUDED.status,
			response_status = 0,
			response_headers = NULL,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
		RETURNING id`

	// A concurrent Release can delete the row between the upsert and the
	// read, in which case the claim is simply attempted again.
	for attempt := 0; attempt < 3; attempt++ {
		var claimed string
		err := s.db.QueryRowContext(ctx, claim, id, key, fingerprint, StatusPending, now, now.Add(ttl)).Scan(&claimed)
		if err == nil {
			return Reservation{State: ReservationStateNew, Record: Record{
				Key:         key,
				Fingerprint: fingerprint,
				Status:      StatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(ttl),
			}}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, fmt.Errorf("claim idempotency key: %w", err)
		}

		record, err := s.get(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return Reservation{}, err
		}

		if record.Fingerprint != fingerprint {
			return Reservation{}, ErrFingerprintMismatch
		}
		if record.Status == StatusCompleted {
			return Reservation{State: ReservationStateCompleted, Record: record}, nil
		}
		return Reservation{State: ReservationStatePending, Record: record}, nil
	}

	return Reservation{}, fmt.Errorf("claim idempotency key: contention on %s", id)
}

func (s *PostgresStore) get(ctx context.Context, id string) (Record, error) {
	const query = `
		SELECT key, fingerprint, status, response_status, response_headers, response_body,
		       created_at, updated_at, expires_at
		FROM idempotency_keys
		WHERE id = $1`

	var (
		r       Record
		headers []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.Key, &r.Fingerprint, &r.Status, &r.ResponseStatus, &headers, &r.ResponseBody,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("get idempotency key: %w", err)
	}

	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &r.ResponseHeaders); err != nil {
			return Record{}, fmt.Errorf("decode stored headers: %w", err)
		}
	}
	return r, nil
}

func (s *PostgresStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var headers []byte
	if h := sanitizeHeaders(resp.Headers); h != nil {
		encoded, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("encode headers: %w", err)
		}
		headers = encoded
	}

	const query = `
		UPDATE idempotency_keys
		SET status = $3, response_status = $4, response_headers = $5, response_body = $6,
		    updated_at = $7, expires_at = $8
		WHERE id = $1 AND fingerprint = $2`

	res, err := s.db.ExecContext(ctx, query,
		recordID(key), fingerprint, StatusCompleted, resp.Status, nullJSON(headers), resp.Body, now, now.Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("save idempotent response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save idempotent response: %w", err)
	}
	if n == 0 {
		return ErrFingerprintMismatch
	}
	return nil
}

func (s *PostgresStore) Release(ctx context.Context, key, fingerprint string) error {
	const query = `DELETE FROM idempotency_keys WHERE id = $1 AND fingerprint = $2 AND status = $3`
	if _, err := s.db.ExecContext(ctx, query, recordID(key), fingerprint, StatusPending); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 1000
	}

	const query = `
		DELETE FROM idempotency_keys
		WHERE id IN (
			SELECT id FROM idempotency_keys WHERE expires_at <= $1 LIMIT $2
		)`

	res, err := s.db.ExecContext(ctx, query, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return int(n), nil
}

// nullJSON keeps an absent header set as SQL NULL instead of an empty JSONB.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
