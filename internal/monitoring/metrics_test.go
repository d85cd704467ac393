package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordMatchRun(3, 2)
	m.RecordMatchRun(1, 0)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])
	assert.InDelta(t, 50.0, stats["error_rate_percent"].(float64), 0.001)
	assert.InDelta(t, 50.0, stats["cache_hit_rate_percent"].(float64), 0.001)
	assert.Equal(t, int64(2), stats["match_runs"])
	assert.Equal(t, int64(4), stats["teams_formed"])
	assert.Equal(t, int64(2), stats["unmatched_total"])
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()

	t.Run("empty window is zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(95))
	})

	t.Run("percentiles over a known distribution", func(t *testing.T) {
		for i := 1; i <= 100; i++ {
			m.RecordResponseTime(time.Duration(i) * time.Millisecond)
		}

		p50 := m.GetPercentileResponseTime(50)
		p99 := m.GetPercentileResponseTime(99)
		assert.Equal(t, 50*time.Millisecond, p50)
		assert.Equal(t, 99*time.Millisecond, p99)
	})

	t.Run("window keeps only the last thousand samples", func(t *testing.T) {
		for i := 0; i < 1200; i++ {
			m.RecordResponseTime(time.Millisecond)
		}
		m.ResponseTimesMutex.RLock()
		defer m.ResponseTimesMutex.RUnlock()
		assert.LessOrEqual(t, len(m.ResponseTimes), 1000)
	})
}

func TestMetricsStatusDistribution(t *testing.T) {
	m := NewMetrics()

	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(404)

	dist := m.GetStatusCodeDistribution()
	assert.Equal(t, int64(2), dist[200])
	assert.Equal(t, int64(1), dist[404])

	// The returned map is a copy.
	dist[200] = 99
	assert.Equal(t, int64(2), m.GetStatusCodeDistribution()[200])
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.RecordMatchRun(2, 1)
	m.RecordRequestByStatus(200)

	m.Reset()

	stats := m.GetStats()
	assert.Equal(t, int64(0), stats["total_requests"])
	assert.Equal(t, int64(0), stats["match_runs"])
	assert.Empty(t, m.GetStatusCodeDistribution())
}
