package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/ratelimiter"
	"github.com/pitabwire/tenantkit/security"
)

func newLimiter(t *testing.T, rps, burst int) *ratelimiter.KeyedLimiter {
	t.Helper()
	limiter := ratelimiter.NewKeyedLimiter(&ratelimiter.Config{
		RequestsPerSecond: rps,
		Burst:             burst,
	})
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func TestConfigFrom(t *testing.T) {
	cfg := ratelimiter.ConfigFrom(&config.ConfigurationDefault{
		RateLimitRequestsPerSecond: 7,
		RateLimitBurst:             3,
		RateLimitAddressShare:      4,
	})
	assert.Equal(t, 7, cfg.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Burst)
	assert.Equal(t, 4, cfg.AddressFactor)

	addresses := cfg.ForAddresses()
	assert.Equal(t, 28, addresses.RequestsPerSecond)
	assert.Equal(t, 12, addresses.Burst)
	assert.Equal(t, 3, cfg.Burst, "scaling leaves the caller limits alone")

	defaults := ratelimiter.ConfigFrom(&config.ConfigurationDefault{})
	assert.Equal(t, *ratelimiter.DefaultConfig(), *defaults)
}

func TestKeyedLimiterDropsLeastRecentKey(t *testing.T) {
	limiter := ratelimiter.NewKeyedLimiter(&ratelimiter.Config{RequestsPerSecond: 1, Burst: 1, MaxKeys: 2})
	t.Cleanup(func() { _ = limiter.Close() })

	require.True(t, limiter.Allow("first"))
	time.Sleep(time.Millisecond)
	require.True(t, limiter.Allow("second"))
	time.Sleep(time.Millisecond)
	require.True(t, limiter.Allow("third"))
	assert.Equal(t, 2, limiter.Len())

	assert.True(t, limiter.Allow("first"), "evicted key starts with a full bucket")
	assert.False(t, limiter.Allow("third"))
}

func TestKeyedLimiterKeysAreIndependent(t *testing.T) {
	limiter := newLimiter(t, 1, 2)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
	assert.Equal(t, 2, limiter.Len())
}

func TestKeyedLimiterTakeReportsWait(t *testing.T) {
	limiter := newLimiter(t, 1, 1)

	ok, wait := limiter.Take("caller")
	require.True(t, ok)
	require.Zero(t, wait)

	ok, wait = limiter.Take("caller")
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
	require.LessOrEqual(t, wait, time.Second)
}

func TestMiddlewareLimitsPerPrincipal(t *testing.T) {
	limiter := newLimiter(t, 1, 1)
	handler := ratelimiter.Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(userID uuid.UUID) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		return req.WithContext(security.PrincipalToContext(req.Context(), &security.Principal{UserID: userID}))
	}

	alice := uuid.New()
	bob := uuid.New()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request(alice))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", rec.Header().Get("X-RateLimit-Scope"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request(alice))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), `"code":"RATE_001"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request(bob))
	assert.Equal(t, http.StatusOK, rec.Code, "same address, different caller")
}

func TestMiddlewareFallsBackToIP(t *testing.T) {
	limiter := newLimiter(t, 1, 1)
	handler := ratelimiter.Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.168.1.9:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ip", rec.Header().Get("X-RateLimit-Scope"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAddressMiddlewareIgnoresPrincipal(t *testing.T) {
	limiter := newLimiter(t, 1, 1)
	handler := ratelimiter.AddressMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
		req.RemoteAddr = "10.0.0.2:4000"
		return req.WithContext(security.PrincipalToContext(req.Context(), &security.Principal{UserID: uuid.New()}))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ip", rec.Header().Get("X-RateLimit-Scope"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "a new user on the same address shares its bucket")
}

func TestMiddlewareWithoutLimiter(t *testing.T) {
	handler := ratelimiter.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
