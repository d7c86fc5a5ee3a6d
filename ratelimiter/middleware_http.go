package ratelimiter

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/security"
	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

const (
	scopeUser    = "user"
	scopeAddress = "ip"
)

func addressKey(r *http.Request) (string, string) {
	ip := util.GetIP(r)
	if ip == "" {
		ip = "unknown"
	}
	return scopeAddress, "ip:" + ip
}

// callerKey identifies the caller: the authenticated user when there is one, the client IP otherwise.
func callerKey(r *http.Request) (string, string) {
	if principal := security.PrincipalFromContext(r.Context()); principal != nil {
		return scopeUser, "user:" + principal.UserID.String()
	}
	return addressKey(r)
}

// Middleware limits each caller to the limiter's token bucket and answers 429 once it is empty.
// It belongs after authentication so that callers behind one address are told apart.
func Middleware(limiter *KeyedLimiter) func(http.Handler) http.Handler {
	return limitBy(limiter, callerKey)
}

// AddressMiddleware limits each client address before any credentials are looked at.
func AddressMiddleware(limiter *KeyedLimiter) func(http.Handler) http.Handler {
	return limitBy(limiter, addressKey)
}

func limitBy(limiter *KeyedLimiter, keyOf func(*http.Request) (string, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, key := keyOf(r)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.RequestsPerSecond()))
			w.Header().Set("X-RateLimit-Scope", scope)

			allowed, wait := limiter.Take(key)
			if !allowed {
				rateLimited(w, r, wait)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	retryAfter := max(int(math.Ceil(wait.Seconds())), 1)

	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	httptor.WriteError(r.Context(), w, httptor.NewError(http.StatusTooManyRequests, "RATE_LIMITED",
		httptor.CodeRateLimited, fmt.Sprintf("Too many requests, retry in %d seconds", retryAfter)))
}
