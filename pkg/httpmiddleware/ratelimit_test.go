package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(t *testing.T, h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitUnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := 0; i < 5; i++ {
		w := hit(t, h, "192.168.1.1:12345", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitOverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:9999", nil).Code)
	}

	w := hit(t, h, "10.0.0.1:9999", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code int    `json:"code"`
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate_limited", body.Kind)
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.2:1234", nil).Code)
	// Same IP, different ephemeral port still shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.0.0.1:5678", nil).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("api_key")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"api_key": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "2.2.2.2:2", map[string]string{"api_key": "a"}).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"api_key": "b"}).Code)
}

func TestRateLimitForwardedFor(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, hit(t, h, "192.168.1.1:4444", xff).Code)
	// Different RemoteAddr, same forwarded client: still limited.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "192.168.1.2:5555", xff).Code)
}

func TestLimiterSlidingWindow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, _, ok := l.allow("k", start.Add(time.Duration(i)*time.Second))
		require.True(t, ok, "request %d", i+1)
	}
	_, _, ok := l.allow("k", start.Add(5*time.Second))
	require.False(t, ok)

	// Half a window later the previous window still weighs in at 50%,
	// leaving room for roughly half the budget.
	mid := start.Add(90 * time.Second)
	_, _, ok = l.allow("k", mid)
	assert.True(t, ok)

	// Two full windows later the old counts are gone entirely.
	later := start.Add(4 * time.Minute)
	for i := 0; i < 4; i++ {
		_, _, ok := l.allow("k", later.Add(time.Duration(i)*time.Second))
		require.True(t, ok)
	}
}

func TestLimiterEvictStale(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()
	l.allow("gone", now.Add(-5*time.Second))
	l.allow("kept", now)

	l.evictStale(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.keys, "gone")
	assert.Contains(t, l.keys, "kept")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.9:1234"
	assert.Equal(t, "192.0.2.9", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, "203.0.113.50", clientIP(r))
}
