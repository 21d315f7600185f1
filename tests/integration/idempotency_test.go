package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/kitrunner/internal/idempotency"
)

func TestIdempotencyPostgresLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := idempotency.NewPostgresStore(db)
	now := time.Now()
	ttl := time.Hour

	res, err := s.Reserve(ctx, "order-1", "fp-a", now, ttl)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStateNew, res.State)

	res, err = s.Reserve(ctx, "order-1", "fp-a", now, ttl)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStatePending, res.State)

	_, err = s.Reserve(ctx, "order-1", "fp-b", now, ttl)
	assert.ErrorIs(t, err, idempotency.ErrFingerprintMismatch)

	resp := idempotency.Response{
		Status:  http.StatusCreated,
		Headers: http.Header{"Content-Type": {"application/json"}, "Location": {"/api/orders/KR1"}},
		Body:    []byte(`{"order":{"orderNumber":"KR1"}}`),
	}
	require.NoError(t, s.SaveResponse(ctx, "order-1", "fp-a", resp, now, ttl))
	assert.ErrorIs(t, s.SaveResponse(ctx, "order-1", "fp-b", resp, now, ttl), idempotency.ErrFingerprintMismatch)

	res, err = s.Reserve(ctx, "order-1", "fp-a", now.Add(time.Minute), ttl)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStateCompleted, res.State)
	assert.Equal(t, http.StatusCreated, res.Record.ResponseStatus)
	assert.Equal(t, resp.Body, res.Record.ResponseBody)
	assert.Equal(t, []string{"/api/orders/KR1"}, res.Record.ResponseHeaders["Location"])

	// Completed keys survive a release.
	require.NoError(t, s.Release(ctx, "order-1", "fp-a"))
	res, err = s.Reserve(ctx, "order-1", "fp-a", now, ttl)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStateCompleted, res.State)
}

func TestIdempotencyPostgresReleaseAndExpiry(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := idempotency.NewPostgresStore(db)
	now := time.Now()

	_, err := s.Reserve(ctx, "failed", "fp", now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "failed", "fp"))

	res, err := s.Reserve(ctx, "failed", "fp", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStateNew, res.State, "released key can be claimed again")

	_, err = s.Reserve(ctx, "short", "fp-old", now, time.Minute)
	require.NoError(t, err)

	later := now.Add(2 * time.Minute)
	res, err = s.Reserve(ctx, "short", "fp-new", later, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, idempotency.ReservationStateNew, res.State, "expired key is reclaimed with a new body")

	n, err := s.CleanupExpired(ctx, now.Add(2*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var left int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM idempotency_keys`).Scan(&left))
	assert.Zero(t, left)
}

func TestIdempotencyPostgresConcurrentReserve(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := idempotency.NewPostgresStore(db)
	now := time.Now()

	concurrency := 10
	var wg sync.WaitGroup
	states := make(chan idempotency.ReservationState, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Reserve(ctx, "race", "fp", now, time.Hour)
			if err != nil {
				t.Errorf("Reserve: %v", err)
				return
			}
			states <- res.State
		}()
	}

	wg.Wait()
	close(states)

	winners := 0
	for st := range states {
		if st == idempotency.ReservationStateNew {
			winners++
		} else {
			assert.Equal(t, idempotency.ReservationStatePending, st)
		}
	}
	assert.Equal(t, 1, winners)
}
