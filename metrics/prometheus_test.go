package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func collectAll(s *PrometheusSink) int {
	c := make(chan prometheus.Metric, 16)
	s.Collect(c)
	close(c)
	n := 0
	for range c {
		n++
	}
	return n
}

func Test_PrometheusSink(t *testing.T) {
	sink := newPrometheusSink(0)
	sink.SetGauge([]string{"validator", "csca_cache", "bytes"}, 42, nil)
	sink.IncrCounter([]string{"parser", "certs"}, 1, []Tag{{Name: "country", Value: "NL"}})
	sink.IncrCounter([]string{"parser", "certs"}, 2, []Tag{{Name: "country", Value: "NL"}})
	sink.AddSample([]string{"pa", "authenticate"}, 12.5, nil)
	assert.Equal(t, 3, collectAll(sink))

	// the same name with different tags is a distinct series
	sink.IncrCounter([]string{"parser", "certs"}, 1, []Tag{{Name: "country", Value: "DE"}})
	assert.Equal(t, 4, collectAll(sink))
}

func Test_PrometheusSinkExpiration(t *testing.T) {
	sink := newPrometheusSink(time.Nanosecond)
	sink.SetGauge([]string{"ingest", "uploads"}, 1, nil)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, collectAll(sink))
	assert.Empty(t, sink.gauges)
	assert.Empty(t, sink.updated)
}

func Test_FlattenKey(t *testing.T) {
	name, hash := flattenKey([]string{"pa", "cache.size"}, []Tag{{Name: "status", Value: "VALID"}})
	assert.Equal(t, "pa_cache_size", name)
	assert.Equal(t, "pa_cache_size;status=VALID", hash)
}
