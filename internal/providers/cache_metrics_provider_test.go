package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type cacheMetricsTestMetrics struct {
	noopMetrics
	hits   int
	misses int
}

func (m *cacheMetricsTestMetrics) IncCacheHits()   { m.hits++ }
func (m *cacheMetricsTestMetrics) IncCacheMisses() { m.misses++ }

type cacheMetricsTestInner struct {
	data map[string][]byte
}

func (c *cacheMetricsTestInner) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}
func (c *cacheMetricsTestInner) Set(key string, value []byte) { c.data[key] = value }
func (c *cacheMetricsTestInner) Delete(key string)            { delete(c.data, key) }

func newCountingCache(data map[string][]byte) (*MetricsCacheProvider, *cacheMetricsTestInner, *cacheMetricsTestMetrics) {
	inner := &cacheMetricsTestInner{data: data}
	metrics := &cacheMetricsTestMetrics{}
	return &MetricsCacheProvider{inner: inner, metrics: metrics}, inner, metrics
}

func TestMetricsCacheProvider_CountsHitsAndMisses(t *testing.T) {
	cache, _, metrics := newCountingCache(map[string][]byte{"monitoring:overview": []byte(`{}`)})

	val, ok := cache.Get("monitoring:overview")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{}`), val)

	val, ok = cache.Get("archive:statistics")
	assert.False(t, ok)
	assert.Nil(t, val)

	cache.Get("monitoring:overview")
	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
}

func TestMetricsCacheProvider_WritesDelegateUncounted(t *testing.T) {
	cache, inner, metrics := newCountingCache(map[string][]byte{})

	cache.Set("archive:statistics", []byte(`{"total_archives":4}`))
	_, ok := inner.Get("archive:statistics")
	assert.True(t, ok)

	cache.Delete("archive:statistics")
	_, ok = inner.Get("archive:statistics")
	assert.False(t, ok)

	assert.Zero(t, metrics.hits)
	assert.Zero(t, metrics.misses)
}

func TestNewInstrumentedCacheProvider(t *testing.T) {
	metrics := &cacheMetricsTestMetrics{}

	disabled := NewInstrumentedCacheProvider(cacheConfig(false, testCacheBytes, time.Second), &cacheTestLogger{}, metrics)
	assert.IsType(t, &noopCache{}, disabled)
	disabled.Get("monitoring:overview")
	assert.Zero(t, metrics.misses)

	enabled := NewInstrumentedCacheProvider(cacheConfig(true, testCacheBytes, time.Second), &cacheTestLogger{}, metrics)
	assert.IsType(t, &MetricsCacheProvider{}, enabled)
	enabled.Get("monitoring:overview")
	assert.Equal(t, 1, metrics.misses)
}
