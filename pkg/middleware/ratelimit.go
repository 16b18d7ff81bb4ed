package middleware

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/httputil"
	"github.com/intellium/patentguard/pkg/observability"
)

// Counter increments the fixed-window counter stored under key and returns
// the count so far in the current window and when that window ends.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

const counterShards = 16

// DefaultMaxKeys bounds the in-process counter
const DefaultMaxKeys = 100000

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

type counterShard struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *fixedWindow]
}

// MemoryCounter is an in-process Counter. Keys are spread over sharded
// mutexes; each shard keeps a bounded LRU of windows, so expired windows are
// replaced lazily and the least recently used keys are evicted once full.
type MemoryCounter struct {
	shards [counterShards]*counterShard
	now    func() time.Time
}

// NewMemoryCounter creates a counter holding at most maxKeys windows
func NewMemoryCounter(maxKeys int) (*MemoryCounter, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	perShard := maxKeys / counterShards
	if perShard < 1 {
		perShard = 1
	}

	c := &MemoryCounter{now: time.Now}
	for i := range c.shards {
		cache, err := lru.New[string, *fixedWindow](perShard)
		if err != nil {
			return nil, fmt.Errorf("failed to create counter shard: %w", err)
		}
		c.shards[i] = &counterShard{windows: cache}
	}
	return c, nil
}

// WithClock replaces the time source. Used by tests.
func (c *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	c.now = now
	return c
}

// Incr implements Counter
func (c *MemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	shard := c.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := c.now()
	w, ok := shard.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		shard.windows.Add(key, w)
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Len returns the number of tracked windows
func (c *MemoryCounter) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.windows.Len()
	}
	return n
}

func (c *MemoryCounter) shard(key string) *counterShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%counterShards]
}

// RateLimiterConfig configures a RateLimiter
type RateLimiterConfig struct {
	Enabled    bool
	TrustProxy bool
	// Backend labels counter errors in metrics ("memory" or "redis")
	Backend  string
	Profiles map[string][]Limit
}

// Decision is the outcome of one rate limit check. Limit is the window that
// decided it: the exceeded one on rejection, the tightest one otherwise.
type Decision struct {
	Allowed   bool
	Limit     Limit
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter applies fixed-window limits per profile and client identity
type RateLimiter struct {
	counter    Counter
	profiles   map[string][]Limit
	enabled    bool
	trustProxy bool
	backend    string
	logger     *observability.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewRateLimiter creates a rate limiter. Profiles missing from cfg fall back
// to DefaultProfiles.
func NewRateLimiter(counter Counter, cfg RateLimiterConfig, logger *observability.Logger, metrics *observability.Metrics) (*RateLimiter, error) {
	profiles, err := ParseProfiles(nil)
	if err != nil {
		return nil, err
	}
	for name, limits := range cfg.Profiles {
		if len(limits) > 0 {
			profiles[name] = limits
		}
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}

	return &RateLimiter{
		counter:    counter,
		profiles:   profiles,
		enabled:    cfg.Enabled,
		trustProxy: cfg.TrustProxy,
		backend:    cfg.Backend,
		logger:     logger.WithField("component", "rate_limiter"),
		metrics:    metrics,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source used for Retry-After. Used by tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Limits returns the windows of a profile, falling back to the default profile
func (rl *RateLimiter) Limits(profile string) []Limit {
	if limits, ok := rl.profiles[profile]; ok {
		return limits
	}
	return rl.profiles[ProfileDefault]
}

// Allow counts one request for identity against every window of profile.
// Each window is tracked independently; the request is rejected if any is
// exceeded. Counter errors fail open and are returned alongside the decision.
func (rl *RateLimiter) Allow(ctx context.Context, profile, identity string) (Decision, error) {
	var (
		decision = Decision{Allowed: true, Remaining: math.MaxInt64}
		firstErr error
	)

	for _, limit := range rl.Limits(profile) {
		key := fmt.Sprintf("%s:%d:%s", profile, int64(limit.Window/time.Second), identity)
		count, resetAt, err := rl.counter.Incr(ctx, key, limit.Window)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		remaining := limit.Requests - count
		if remaining < 0 {
			remaining = 0
		}

		exceeded := count > limit.Requests
		switch {
		case exceeded && decision.Allowed:
			decision = Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
		case exceeded:
			if resetAt.After(decision.ResetAt) {
				decision.Limit, decision.ResetAt = limit, resetAt
			}
		case decision.Allowed && remaining < decision.Remaining:
			decision.Limit, decision.Remaining, decision.ResetAt = limit, remaining, resetAt
		}
	}

	if decision.Remaining == math.MaxInt64 {
		decision.Remaining = 0
	}
	return decision, firstErr
}

// Limit returns middleware enforcing profile. Identity is the authenticated
// user when a principal is attached, the client address otherwise.
func (rl *RateLimiter) Limit(profile string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !rl.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := rl.identity(r)
			decision, err := rl.Allow(r.Context(), profile, identity)
			if err != nil {
				rl.metrics.RecordRateLimitError(rl.backend)
				observability.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
					"profile": profile,
					"backend": rl.backend,
				}).Warn("Rate limit counter unavailable, allowing request")
			}
			rl.metrics.RecordRateLimitDecision(profile, decision.Allowed)

			if decision.Limit.Requests > 0 {
				rl.setHeaders(w, decision)
			}

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(rl.retryAfter(decision.ResetAt), 10))
				observability.FromContext(r.Context()).WithFields(map[string]interface{}{
					"profile":  profile,
					"identity": identity,
					"limit":    decision.Limit.String(),
				}).Debug("Rate limit exceeded")
				httputil.WriteAPIError(w, r, httputil.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) identity(r *http.Request) string {
	if user := auth.PrincipalFromContext(r.Context()); user != nil {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	return "ip:" + httputil.ClientIP(r, rl.trustProxy)
}

func (rl *RateLimiter) setHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit.Requests, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func (rl *RateLimiter) retryAfter(resetAt time.Time) int64 {
	secs := int64(math.Ceil(resetAt.Sub(rl.now()).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
