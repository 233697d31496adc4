package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
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

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestBucket_BurstThenRefill(t *testing.T) {
	start := time.Now()
	b := newBucket(3, 1.0, start)

	for i := 0; i < 3; i++ {
		allowed, _, _ := b.take(start)
		assert.True(t, allowed, "request %d", i+1)
	}
	allowed, remaining, reset := b.take(start)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.Equal(t, start.Add(3*time.Second), reset)

	allowed, _, _ = b.take(start.Add(time.Second))
	assert.True(t, allowed)
}

func TestLimiter_ContactEndpoint(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("203.0.113.7", "/api/contact", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
	}

	allowed, info := l.Allow("203.0.113.7", "/api/contact", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 6*time.Minute, info.RetryAfter)

	// Other clients have their own bucket.
	allowed, _ = l.Allow("198.51.100.2", "/api/contact", "POST")
	assert.True(t, allowed)

	clock.Advance(7 * time.Minute)
	allowed, _ = l.Allow("203.0.113.7", "/api/contact", "POST")
	assert.True(t, allowed)
}

func TestLimiter_PrefixRuleSharesBucket(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: []EndpointConfig{{Path: "/api/leads/", Method: "DELETE", Limit: 2, Window: time.Minute}},
	})

	allowed, _ := l.Allow("c", "/api/leads/a", "DELETE")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/api/leads/b", "DELETE")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/api/leads/c", "DELETE")
	assert.False(t, allowed)
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("c", "/api/reviews", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("c", "/api/services", "GET")
	assert.False(t, allowed, "default bucket is shared across unmatched paths")
}

func TestLimiter_Unlimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})

	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("c", "/api/health", "GET")
		assert.True(t, allowed)
		allowed, _ = l.Allow("c", "/api/contact", "OPTIONS")
		assert.True(t, allowed)
	}
}

func TestLimiter_Lists(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/api/reviews", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.2", "/api/reviews", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false})
	allowed, info := l.Allow("c", "/api/contact", "POST")
	assert.True(t, allowed)
	assert.Zero(t, info.Limit)
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute, IdleTTL: time.Hour})

	l.Allow("old", "/api/reviews", "GET")
	clock.Advance(2 * time.Hour)
	l.Allow("new", "/api/reviews", "GET")

	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	for key := range l.buckets {
		assert.Contains(t, key, "new")
	}
}

func TestLimiter_StopEndsCleanupGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	l.Stop()
	l.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantPath     string
		wantNil      bool
	}{
		{"/api/contact", "POST", "/api/contact", false},
		{"/api/contact", "GET", "", true},
		{"/api/leads/123", "PUT", "/api/leads/", false},
		{"/api/leads", "GET", "", true},
		{"/api/health", "GET", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")

	cfg := LoadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.NotEmpty(t, cfg.EndpointConfigs)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
