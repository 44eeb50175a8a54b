package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "parkshare/pkg/errors"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	IdempotencyKeyCtx contextKey = "idempotency_key"
)

// IdempotencyStore caches successful responses per key. Reserve claims a key
// for the request executing it; a second Reserve fails until Release or until
// the reservation lapses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, response *CachedResponse)
	Reserve(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
	Stop() // Stop cleanup goroutines and release resources
}

// inflightTTL bounds a reservation left behind by a crashed replica. It is
// longer than any request deadline.
const inflightTTL = 2 * time.Minute

type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

type InMemoryIdempotencyStore struct {
	mu       sync.RWMutex
	store    map[string]*CachedResponse
	inflight map[string]time.Time
	ttl      time.Duration
	stopCh   chan struct{}
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:    make(map[string]*CachedResponse),
		inflight: make(map[string]time.Time),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Get(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.RLock()
	response, exists := s.store[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(response.CreatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.store, key)
		s.mu.Unlock()
		return nil, false
	}

	return response, true
}

func (s *InMemoryIdempotencyStore) Set(_ context.Context, key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = response
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if since, held := s.inflight[key]; held && time.Since(since) < inflightTTL {
		return false
	}
	s.inflight[key] = time.Now()
	return true
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, response := range s.store {
				if time.Since(response.CreatedAt) > s.ttl {
					delete(s.store, key)
				}
			}
			for key, since := range s.inflight {
				if time.Since(since) >= inflightTTL {
					delete(s.inflight, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	close(s.stopCh)
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a successful request carrying the
// same key from the same user. While one request holds a key, others with that
// key get 409. The key is also exposed to handlers, which use it to derive
// ledger references so a retried operation cannot charge twice.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = IdempotencyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get(headerName)

			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), IdempotencyKeyCtx, idempotencyKey))
			storeKey := scopedKey(r, idempotencyKey)

			if handleCachedResponse(w, r, store, storeKey) {
				return
			}
			if !store.Reserve(r.Context(), storeKey) {
				// the holder may have finished between the lookup and the claim
				if handleCachedResponse(w, r, store, storeKey) {
					return
				}
				reject(w, http.StatusConflict, apperrors.CodeConflict, "A request with this idempotency key is still in progress")
				return
			}
			defer store.Release(context.WithoutCancel(r.Context()), storeKey)

			capture := captureResponse(w)
			next.ServeHTTP(capture, r)
			cacheSuccessfulResponse(r.Context(), store, storeKey, capture, w)
		})
	}
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(IdempotencyKeyCtx).(string)
	return key
}

// OperationID names one logical client operation: the idempotency key when the
// client sent one, otherwise a fresh id.
func OperationID(ctx context.Context) string {
	if key := IdempotencyKey(ctx); key != "" {
		return key
	}
	return uuid.NewString()
}

func scopedKey(r *http.Request, key string) string {
	return DefaultUserExtractor(r) + ":" + r.Method + ":" + r.URL.Path + ":" + key
}

func handleCachedResponse(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key string) bool {
	cached, found := store.Get(r.Context(), key)
	if !found {
		return false
	}

	replayCachedResponse(w, cached)
	return true
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func captureResponse(w http.ResponseWriter) *responseCapture {
	return &responseCapture{
		ResponseWriter: w,
		statusCode:     200,
		body:           &bytes.Buffer{},
	}
}

func cacheSuccessfulResponse(ctx context.Context, store IdempotencyStore, key string, capture *responseCapture, w http.ResponseWriter) {
	if !shouldCacheResponse(capture.statusCode) {
		return
	}

	cached := &CachedResponse{
		StatusCode: capture.statusCode,
		Headers:    w.Header().Clone(),
		Body:       capture.body.Bytes(),
	}
	store.Set(ctx, key, cached)
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
