package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/api/middleware"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// memoryCache is an in-process cache provider for middleware tests
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return nil, apperrors.NewNotFoundError("cache miss")
	}
	return value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok, nil
}

func countingHandler(hits *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*hits++
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestCacheMiddleware_ServesSecondReadFromCache(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(newMemoryCache()).
		Middleware(countingHandler(&hits, http.StatusOK, `{"call":{}}`))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/calls/ext-1/transcript?tenant_id=t1", nil))
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/calls/ext-1/transcript?tenant_id=t1", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, hits)
}

func TestCacheMiddleware_QueryIsPartOfTheKey(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(newMemoryCache()).
		Middleware(countingHandler(&hits, http.StatusOK, `{}`))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/calls/ext-1/transcript?tenant_id=t1", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/calls/ext-1/transcript?tenant_id=t2", nil))

	assert.Equal(t, 2, hits)
}

func TestCacheMiddleware_ApprovalQueueIsNeverCached(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(newMemoryCache()).
		Middleware(countingHandler(&hits, http.StatusOK, `{"approvals":[]}`))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/approvals?tenant_id=t1", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, hits)
}

func TestCacheMiddleware_ErrorsAreNotCached(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(newMemoryCache()).
		Middleware(countingHandler(&hits, http.StatusNotFound, `{"error":"call not found"}`))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/calls/missing/transcript", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/calls/missing/transcript", nil))

	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}

func TestCacheMiddleware_WritesBypassCache(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(newMemoryCache()).
		Middleware(countingHandler(&hits, http.StatusOK, `{}`))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calls/ext-1/transcript", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, hits)
}

func TestCacheMiddleware_NilProviderPassesThrough(t *testing.T) {
	hits := 0
	handler := middleware.NewCacheMiddleware(nil).
		Middleware(countingHandler(&hits, http.StatusOK, `{}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calls/ext-1/transcript", nil))

	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, hits)
}
