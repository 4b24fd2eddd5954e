package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PageAllocs.WithLabelValues("0", SourceSteal).Inc()
	m.CacheHits.Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PageAllocs.WithLabelValues("0", SourceSteal)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHits))

	n, err := testutil.GatherAndCount(reg, "xvmem_bcache_hits_total", "xvmem_kalloc_page_allocs_total")
	assert.Nil(t, err)
	assert.Equal(t, 2, n)

	// registering the same collectors twice must fail
	assert.Panics(t, func() { New(reg) })
}

func TestNewUnregistered(t *testing.T) {
	m := New(nil)
	m.DiskReads.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DiskReads))
}
