package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestLimiterWindow(t *testing.T) {
	clock := newClock()
	l := New(NewMemoryStoreWithClock(clock.Now), time.Minute, 10)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := l.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, 10-i, res.Remaining)
		clock.Advance(time.Second)
	}

	res, err := l.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 50*time.Second, res.ResetIn)

	// other keys are independent
	res, err = l.Check(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	clock.Advance(51 * time.Second)
	res, err = l.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 9, res.Remaining)
	assert.Equal(t, time.Minute, res.ResetIn)
}

func TestLimiterWindowEndsAtExactLength(t *testing.T) {
	clock := newClock()
	l := New(NewMemoryStoreWithClock(clock.Now), time.Minute, 10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, "k")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	clock.Advance(time.Minute - time.Nanosecond)
	res, err := l.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.ResetIn)

	clock.Advance(time.Nanosecond)
	res, err = l.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 9, res.Remaining)
	assert.Equal(t, time.Minute, res.ResetIn)
}

func TestLimiterBoundaryBurst(t *testing.T) {
	clock := newClock()
	l := New(NewMemoryStoreWithClock(clock.Now), time.Minute, 10)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		res, _ := l.Check(ctx, "k")
		if res.Allowed {
			allowed++
		}
	}
	clock.Advance(time.Minute + time.Millisecond)
	for i := 0; i < 10; i++ {
		res, _ := l.Check(ctx, "k")
		if res.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 20, allowed)
}

func TestLimiterDefaults(t *testing.T) {
	l := New(NewMemoryStore(), 0, 0)
	assert.Equal(t, DefaultMax, l.Max())
	assert.Equal(t, DefaultWindow, l.window)
}

func TestLimiterConcurrent(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 10)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(context.Background(), "shared")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := newClock()
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, _, err := s.Hit(ctx, k, time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, s.Len())

	clock.Advance(2 * time.Minute)
	_, _, err := s.Hit(ctx, "d", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("down")
}

func TestMiddleware(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 2)
	h := l.Middleware("links")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/user/links", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1111").Code)
	rec := call("10.0.0.1:2222")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1111").Code)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	l := New(failingStore{}, time.Minute, 1)
	h := l.Middleware("x")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4321"
	assert.Equal(t, "192.168.1.5", ClientIP(req))
	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	l := New(NewRedisStore(client, "test:"+uuid.NewString()+":"), 2*time.Second, 3)
	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.ResetIn, time.Duration(0))

	time.Sleep(2100 * time.Millisecond)
	res, err = l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}
