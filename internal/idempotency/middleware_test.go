package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.December, 1, 12, 0, 0, 0, time.UTC)

type countingHandler struct {
	mu     sync.Mutex
	calls  int
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	h.calls++
	n := h.calls
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(n) + `}`))
}

func postOrder(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderName, key)
	}
	return req
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	code, _ := payload["error"].(string)
	return code
}

func TestMiddleware_WithoutKeyPassesThrough(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(next)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postOrder(`{"eventId":1}`, ""))
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Empty(t, rr.Header().Get(ReplayHeaderName))
	}
	assert.Equal(t, 2, next.calls)
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(next)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, postOrder(`{"eventId":1}`, "abc-123"))
	require.Equal(t, http.StatusCreated, rr1.Code)
	assert.Empty(t, rr1.Header().Get(ReplayHeaderName))

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, postOrder(`{"eventId":1}`, "abc-123"))

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, http.StatusCreated, rr2.Code)
	assert.Equal(t, "true", rr2.Header().Get(ReplayHeaderName))
	assert.Equal(t, "application/json", rr2.Header().Get("Content-Type"))
	assert.Equal(t, rr1.Body.String(), rr2.Body.String())
}

func TestMiddleware_DifferentBodyConflicts(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(next)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, postOrder(`{"eventId":1}`, "same-key"))
	require.Equal(t, http.StatusCreated, rr1.Code)

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, postOrder(`{"eventId":2}`, "same-key"))

	assert.Equal(t, http.StatusConflict, rr2.Code)
	assert.Equal(t, "idempotency_key_conflict", errorCode(t, rr2.Body.Bytes()))
	assert.Equal(t, 1, next.calls)
}

func TestMiddleware_ServerErrorIsNotStored(t *testing.T) {
	next := &countingHandler{status: http.StatusInternalServerError}
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(next)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postOrder(`{"eventId":1}`, "retry-me"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	}
	assert.Equal(t, 2, next.calls)
}

func TestMiddleware_ClientErrorIsReplayed(t *testing.T) {
	next := &countingHandler{status: http.StatusBadRequest}
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(next)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postOrder(`{}`, "bad-request"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
	assert.Equal(t, 1, next.calls)
}

func TestMiddleware_PendingKeyConflicts(t *testing.T) {
	store := NewMemoryStore()
	body := `{"eventId":1}`
	req := postOrder(body, "in-flight")

	_, err := store.Reserve(context.Background(), "in-flight", requestFingerprint(req, []byte(body)), fixedTime, time.Hour)
	require.NoError(t, err)

	next := &countingHandler{status: http.StatusCreated}
	rr := httptest.NewRecorder()
	Middleware(store, WithClock(func() time.Time { return fixedTime }))(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "idempotency_in_progress", errorCode(t, rr.Body.Bytes()))
	assert.Zero(t, next.calls)
}

func TestMiddleware_IgnoresUnguardedMethods(t *testing.T) {
	next := &countingHandler{status: http.StatusOK}
	handler := Middleware(NewMemoryStore())(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/KR1", nil)
		req.Header.Set(HeaderName, "k")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 2, next.calls)
}

func TestMiddleware_RejectsOversizedKey(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	rr := httptest.NewRecorder()
	Middleware(NewMemoryStore())(next).ServeHTTP(rr, postOrder(`{}`, strings.Repeat("k", maxKeyLength+1)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, next.calls)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{}, errors.New("connection refused")
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, _ ...any) {
	l.lines = append(l.lines, format)
}

func TestMiddleware_StoreFailure(t *testing.T) {
	logger := &recordingLogger{}
	next := &countingHandler{status: http.StatusCreated}
	rr := httptest.NewRecorder()
	Middleware(failingStore{NewMemoryStore()}, WithLogger(logger))(next).ServeHTTP(rr, postOrder(`{}`, "k"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Zero(t, next.calls)
	assert.Len(t, logger.lines, 1)
}

func TestMemoryStore_ExpiryAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	res, err := s.Reserve(ctx, "k1", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	require.NoError(t, s.SaveResponse(ctx, "k1", "fp", Response{Status: 201, Body: []byte("ok")}, fixedTime, time.Minute))

	res, err = s.Reserve(ctx, "k1", "fp", fixedTime.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, res.State)
	assert.Equal(t, []byte("ok"), res.Record.ResponseBody)

	res, err = s.Reserve(ctx, "k1", "other", fixedTime.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State, "expired key can be reused")

	_, err = s.Reserve(ctx, "k2", "fp", fixedTime, time.Minute)
	require.NoError(t, err)

	removed, err := s.CleanupExpired(ctx, fixedTime.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestMemoryStore_ReleaseKeepsCompleted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Reserve(ctx, "k", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.SaveResponse(ctx, "k", "fp", Response{Status: 201}, fixedTime, time.Hour))
	require.NoError(t, s.Release(ctx, "k", "fp"))

	res, err := s.Reserve(ctx, "k", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, res.State)
}

func TestSanitizeHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", "12")
	h.Set("Date", "today")

	got := sanitizeHeaders(h)
	assert.Equal(t, map[string][]string{"Content-Type": {"application/json"}}, got)
	assert.Nil(t, sanitizeHeaders(http.Header{"Date": {"x"}}))
}
