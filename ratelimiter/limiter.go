package ratelimiter

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pitabwire/tenantkit/config"
)

const (
	defaultRequestsPerSecond = 100
	defaultBurst             = 200
	defaultAddressFactor     = 10
	defaultIdleAfter         = 10 * time.Minute
	defaultSweepEvery        = 5 * time.Minute
	defaultMaxKeys           = 100_000
)

// Config sizes the token bucket kept for each key.
type Config struct {
	RequestsPerSecond int
	Burst             int
	// AddressFactor scales the bucket of a client address, which several callers may share.
	AddressFactor int
	// IdleAfter is how long a key may go unused before its bucket is dropped.
	IdleAfter  time.Duration
	SweepEvery time.Duration
	MaxKeys    int
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() *Config {
	cfg := Config{}.withDefaults()
	return &cfg
}

// ConfigFrom reads the limits from the service configuration. Unset values keep their defaults.
func ConfigFrom(cfg config.ConfigurationRateLimit) *Config {
	result := DefaultConfig()
	if cfg == nil {
		return result
	}
	if rps := cfg.RateLimitRPS(); rps > 0 {
		result.RequestsPerSecond = rps
	}
	if burst := cfg.RateLimitBurstSize(); burst > 0 {
		result.Burst = burst
	}
	if factor := cfg.RateLimitAddressFactor(); factor > 0 {
		result.AddressFactor = factor
	}
	return result
}

// ForAddresses returns the limits of the per client address bucket.
func (c Config) ForAddresses() *Config {
	scaled := c.withDefaults()
	scaled.RequestsPerSecond *= scaled.AddressFactor
	scaled.Burst *= scaled.AddressFactor
	return &scaled
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.AddressFactor <= 0 {
		c.AddressFactor = defaultAddressFactor
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = defaultIdleAfter
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = defaultSweepEvery
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = defaultMaxKeys
	}
	return c
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen atomic.Int64
}

// KeyedLimiter holds one token bucket per key in memory. Buckets idle for longer than
// Config.IdleAfter are swept in the background until Close is called.
type KeyedLimiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	closeOnce sync.Once
	done      chan struct{}
}

// NewKeyedLimiter starts a limiter. A nil cfg uses DefaultConfig.
func NewKeyedLimiter(cfg *Config) *KeyedLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	k := &KeyedLimiter{
		cfg:     cfg.withDefaults(),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go k.sweepLoop()
	return k
}

// RequestsPerSecond is the sustained rate each key is allowed.
func (k *KeyedLimiter) RequestsPerSecond() int {
	return k.cfg.RequestsPerSecond
}

// Allow consumes a token for key and reports whether one was available.
func (k *KeyedLimiter) Allow(key string) bool {
	ok, _ := k.Take(key)
	return ok
}

// Take consumes a token for key. When the bucket is empty nothing is consumed and
// the returned duration says when the next token is due.
func (k *KeyedLimiter) Take(key string) (bool, time.Duration) {
	now := time.Now()
	b := k.bucketFor(key, now)

	reservation := b.tokens.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len is the number of keys currently holding a bucket.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Close stops the background sweep. It is safe to call more than once.
func (k *KeyedLimiter) Close() error {
	k.closeOnce.Do(func() { close(k.done) })
	return nil
}

func (k *KeyedLimiter) bucketFor(key string, now time.Time) *bucket {
	if key == "" {
		key = "unknown"
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		if len(k.buckets) >= k.cfg.MaxKeys {
			k.dropLeastRecentLocked()
		}
		b = &bucket{tokens: rate.NewLimiter(rate.Limit(k.cfg.RequestsPerSecond), k.cfg.Burst)}
		k.buckets[key] = b
	}
	b.lastSeen.Store(now.UnixNano())
	return b
}

func (k *KeyedLimiter) dropLeastRecentLocked() {
	var oldestKey string
	var oldest int64
	for key, b := range k.buckets {
		if seen := b.lastSeen.Load(); oldestKey == "" || seen < oldest {
			oldestKey, oldest = key, seen
		}
	}
	delete(k.buckets, oldestKey)
}

func (k *KeyedLimiter) sweepLoop() {
	ticker := time.NewTicker(k.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			k.sweep(now)
		case <-k.done:
			return
		}
	}
}

func (k *KeyedLimiter) sweep(now time.Time) {
	cutoff := now.Add(-k.cfg.IdleAfter).UnixNano()

	k.mu.Lock()
	defer k.mu.Unlock()
	for key, b := range k.buckets {
		if b.lastSeen.Load() < cutoff {
			delete(k.buckets, key)
		}
	}
}
