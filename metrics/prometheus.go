package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPrometheusExpiration is how long an idle metric stays visible
// on the scrape endpoint before it is dropped. Zero disables expiry.
var DefaultPrometheusExpiration = 60 * time.Second

// PrometheusSink exposes the PKD counters, gauges and latency samples
// as a prometheus collector. It implements the subset of Sink the core
// emits: SetGauge, IncrCounter and AddSample (MeasureSince timings
// arrive through AddSample).
type PrometheusSink struct {
	mu         sync.Mutex
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
	summaries  map[string]prometheus.Summary
	updated    map[string]time.Time
	expiration time.Duration
}

// NewPrometheusSink creates a sink with the default expiration and
// registers it with the default prometheus registry.
func NewPrometheusSink() (*PrometheusSink, error) {
	sink := newPrometheusSink(DefaultPrometheusExpiration)
	return sink, prometheus.Register(sink)
}

func newPrometheusSink(expiration time.Duration) *PrometheusSink {
	return &PrometheusSink{
		gauges:     map[string]prometheus.Gauge{},
		counters:   map[string]prometheus.Counter{},
		summaries:  map[string]prometheus.Summary{},
		updated:    map[string]time.Time{},
		expiration: expiration,
	}
}

// Describe satisfies prometheus.Collector. The registry requires at
// least one description even though the metric set is dynamic.
func (p *PrometheusSink) Describe(c chan<- *prometheus.Desc) {
	prometheus.NewGauge(prometheus.GaugeOpts{Name: "pkd", Help: "pkd"}).Describe(c)
}

// Collect satisfies prometheus.Collector, dropping metrics that have
// not been updated within the expiration window
func (p *PrometheusSink) Collect(c chan<- prometheus.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Time{}
	if p.expiration > 0 {
		cutoff = time.Now().Add(-p.expiration)
	}
	for hash, g := range p.gauges {
		if p.expired(hash, cutoff) {
			delete(p.gauges, hash)
			continue
		}
		g.Collect(c)
	}
	for hash, cnt := range p.counters {
		if p.expired(hash, cutoff) {
			delete(p.counters, hash)
			continue
		}
		cnt.Collect(c)
	}
	for hash, s := range p.summaries {
		if p.expired(hash, cutoff) {
			delete(p.summaries, hash)
			continue
		}
		s.Collect(c)
	}
}

func (p *PrometheusSink) expired(hash string, cutoff time.Time) bool {
	if cutoff.IsZero() || !p.updated[hash].Before(cutoff) {
		return false
	}
	delete(p.updated, hash)
	return true
}

var invalidNameChars = regexp.MustCompile(`[ .=\-/]`)

// flattenKey joins the key parts into a prometheus metric name and a
// hash that also distinguishes the tag set, since prometheus keeps one
// collector per name+labels pair
func flattenKey(parts []string, tags []Tag) (name string, hash string) {
	name = invalidNameChars.ReplaceAllString(strings.Join(parts, "_"), "_")
	hash = name
	for _, tag := range tags {
		hash += fmt.Sprintf(";%s=%s", tag.Name, tag.Value)
	}
	return name, hash
}

func constLabels(tags []Tag) prometheus.Labels {
	labels := make(prometheus.Labels, len(tags))
	for _, tag := range tags {
		labels[tag.Name] = tag.Value
	}
	return labels
}

// SetGauge should retain the last value it is set to
func (p *PrometheusSink) SetGauge(parts []string, val float32, tags []Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, hash := flattenKey(parts, tags)
	g, ok := p.gauges[hash]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        name,
			ConstLabels: constLabels(tags),
		})
		p.gauges[hash] = g
	}
	g.Set(float64(val))
	p.updated[hash] = time.Now()
}

// IncrCounter should accumulate values
func (p *PrometheusSink) IncrCounter(parts []string, val float32, tags []Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, hash := flattenKey(parts, tags)
	cnt, ok := p.counters[hash]
	if !ok {
		cnt = prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        name,
			ConstLabels: constLabels(tags),
		})
		p.counters[hash] = cnt
	}
	cnt.Add(float64(val))
	p.updated[hash] = time.Now()
}

// AddSample is for timing information, where quantiles are used
func (p *PrometheusSink) AddSample(parts []string, val float32, tags []Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, hash := flattenKey(parts, tags)
	s, ok := p.summaries[hash]
	if !ok {
		s = prometheus.NewSummary(prometheus.SummaryOpts{
			Name:        name,
			Help:        name,
			MaxAge:      10 * time.Second,
			ConstLabels: constLabels(tags),
		})
		p.summaries[hash] = s
	}
	s.Observe(float64(val))
	p.updated[hash] = time.Now()
}
