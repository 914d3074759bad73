package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/quantlab/backrun/internal/domain"
)

// ReportCache stores computed quality reports keyed by symbol, timeframe,
// and date range. Caching is optional: the validator itself is pure, so a
// cached report is always safe to share read-only across jobs.
type ReportCache interface {
	Get(key string) (*domain.DataQualityReport, bool)
	Set(key string, report *domain.DataQualityReport, ttl time.Duration)
}

// ReportKey builds the canonical cache key for a bar sequence.
func ReportKey(symbol, timeframe string, from, to time.Time) string {
	return fmt.Sprintf("quality:%s:%s:%d:%d", symbol, timeframe, from.Unix(), to.Unix())
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

type memoryEntry struct {
	report *domain.DataQualityReport
	exp    time.Time
}

// NewMemoryCache returns an in-process report cache.
func NewMemoryCache() ReportCache {
	return &memoryCache{m: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(key string) (*domain.DataQualityReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.report, true
}

func (c *memoryCache) Set(key string, report *domain.DataQualityReport, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{report: report}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// redisCache adapts a Redis client to ReportCache. Lookups are best
// effort: any Redis error is treated as a miss so validation can proceed.
type redisCache struct {
	r *redis.Client
}

// NewRedisCache returns a report cache backed by the given Redis address.
func NewRedisCache(addr string) ReportCache {
	return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *redisCache) Get(key string) (*domain.DataQualityReport, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	raw, err := c.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var report domain.DataQualityReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}
	return &report, true
}

func (c *redisCache) Set(key string, report *domain.DataQualityReport, ttl time.Duration) {
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = c.r.Set(ctx, key, raw, ttl).Err()
}
