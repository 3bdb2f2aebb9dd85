package perf_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/fable/internal/engine/perf"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := perf.NewMetrics()
	m.AddRollTime(2 * time.Millisecond)
	m.AddRollTime(3 * time.Millisecond)
	m.AddEvalTime(time.Millisecond)
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.TableLoaded()

	snap := m.Snapshot()
	assert.Equal(t, 5*time.Millisecond, snap.TotalRollTime)
	assert.Equal(t, time.Millisecond, snap.TotalEvalTime)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(2), snap.CacheMisses)
	assert.Equal(t, int64(1), snap.TableLoads)
}

func TestMetrics_ConcurrentUpdates(t *testing.T) {
	m := perf.NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.CacheHit()
			m.AddRollTime(time.Microsecond)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(100), snap.CacheHits)
	assert.Equal(t, 100*time.Microsecond, snap.TotalRollTime)
}
