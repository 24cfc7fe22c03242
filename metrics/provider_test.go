package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedCall struct {
	op   string
	key  []string
	val  float32
	tags []Tag
}

type captureSink struct {
	calls []capturedCall
}

func (c *captureSink) SetGauge(key []string, val float32, tags []Tag) {
	c.calls = append(c.calls, capturedCall{"gauge", key, val, tags})
}
func (c *captureSink) IncrCounter(key []string, val float32, tags []Tag) {
	c.calls = append(c.calls, capturedCall{"counter", key, val, tags})
}
func (c *captureSink) AddSample(key []string, val float32, tags []Tag) {
	c.calls = append(c.calls, capturedCall{"sample", key, val, tags})
}

func Test_ProviderDecorations(t *testing.T) {
	sink := &captureSink{}
	m, err := New(&Config{
		ServiceName:      "pkd",
		FilterDefault:    true,
		TimerGranularity: time.Millisecond,
	}, sink)
	require.NoError(t, err)

	m.SetGauge([]string{"certs", "count"}, 10)
	m.IncrCounter([]string{"uploads"}, 1, Tag{Name: "format", Value: "ldif"})
	m.MeasureSince([]string{"validate"}, time.Now())

	require.Len(t, sink.calls, 3)
	assert.Equal(t, []string{"pkd", "certs", "count"}, sink.calls[0].key)
	assert.Equal(t, []string{"pkd", "uploads"}, sink.calls[1].key)
	assert.Equal(t, "ldif", sink.calls[1].tags[0].Value)
	assert.Equal(t, "sample", sink.calls[2].op)
}

func Test_ProviderFilter(t *testing.T) {
	sink := &captureSink{}
	m, err := New(&Config{
		FilterDefault:   true,
		BlockedPrefixes: []string{"noisy"},
	}, sink)
	require.NoError(t, err)

	m.IncrCounter([]string{"noisy", "counter"}, 1)
	m.IncrCounter([]string{"kept", "counter"}, 1)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, []string{"kept", "counter"}, sink.calls[0].key)
}

func Test_GlobalProxies(t *testing.T) {
	sink := &captureSink{}
	_, err := NewGlobal(&Config{FilterDefault: true}, sink)
	require.NoError(t, err)

	SetGauge([]string{"g"}, 1)
	IncrCounter([]string{"c"}, 1)
	AddSample([]string{"s"}, 1)
	MeasureSince([]string{"t"}, time.Now())
	assert.Len(t, sink.calls, 4)
}

func Test_InmemSinkAggregates(t *testing.T) {
	im := NewInmemSink(time.Minute, 5*time.Minute)
	im.IncrCounter([]string{"a"}, 1, nil)
	im.IncrCounter([]string{"a"}, 2, nil)
	im.SetGauge([]string{"g"}, 42, nil)

	data := im.Data()
	require.Len(t, data, 1)
	assert.Equal(t, float64(3), data[0].Counters["a"].Sum)
	assert.Equal(t, float32(42), data[0].Gauges["g"].Value)
}
