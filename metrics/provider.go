package metrics

import (
	"runtime"
	"strings"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// SetGauge should retain the last value it is set to
func (m *Metrics) SetGauge(key []string, val float32, tags ...Tag) {
	key, tags = m.decorate("gauge", key, tags)
	allowed, labels := m.allowMetric(key, tags)
	if !allowed {
		return
	}
	m.sink.SetGauge(key, val, labels)
}

// IncrCounter should accumulate values
func (m *Metrics) IncrCounter(key []string, val float32, tags ...Tag) {
	key, tags = m.decorate("counter", key, tags)
	allowed, labels := m.allowMetric(key, tags)
	if !allowed {
		return
	}
	m.sink.IncrCounter(key, val, labels)
}

// AddSample is for timing information, where quantiles are used
func (m *Metrics) AddSample(key []string, val float32, tags ...Tag) {
	key, tags = m.decorate("sample", key, tags)
	allowed, labels := m.allowMetric(key, tags)
	if !allowed {
		return
	}
	m.sink.AddSample(key, val, labels)
}

// MeasureSince emits the elapsed time as a sample, scaled to the
// configured timer granularity
func (m *Metrics) MeasureSince(key []string, start time.Time, tags ...Tag) {
	key, tags = m.decorate("timer", key, tags)
	allowed, labels := m.allowMetric(key, tags)
	if !allowed {
		return
	}
	elapsed := time.Since(start)
	msec := float32(elapsed.Nanoseconds()) / float32(m.TimerGranularity)
	m.sink.AddSample(key, msec, labels)
}

// decorate applies the hostname/service/type key decorations
func (m *Metrics) decorate(typ string, key []string, tags []Tag) ([]string, []Tag) {
	if m.HostName != "" {
		if m.EnableHostnameLabel {
			tags = append(tags, Tag{Name: "host", Value: m.HostName})
		} else if m.EnableHostname {
			key = insert(0, m.HostName, key)
		}
	}
	if m.EnableTypePrefix {
		key = insert(0, typ, key)
	}
	if m.ServiceName != "" {
		if m.EnableServiceLabel {
			tags = append(tags, Tag{Name: "service", Value: m.ServiceName})
		} else {
			key = insert(0, m.ServiceName, key)
		}
	}
	if len(m.GlobalTags) > 0 {
		tags = append(tags, m.GlobalTags...)
	}
	if m.GlobalPrefix != "" {
		key = insert(0, m.GlobalPrefix, key)
	}
	return key, tags
}

// UpdateFilter updates the allow/block prefixes
func (m *Metrics) UpdateFilter(allow, block []string) {
	m.UpdateFilterAndLabels(allow, block, m.AllowedLabels, m.BlockedLabels)
}

// UpdateFilterAndLabels updates the allow/block prefixes and labels
func (m *Metrics) UpdateFilterAndLabels(allow, block, allowedLabels, blockedLabels []string) {
	m.filterLock.Lock()
	defer m.filterLock.Unlock()

	m.AllowedPrefixes = allow
	m.BlockedPrefixes = block

	if allowedLabels == nil {
		m.allowedLabels = nil
	} else {
		m.allowedLabels = make(map[string]bool)
		for _, l := range allowedLabels {
			m.allowedLabels[l] = true
		}
	}
	if blockedLabels == nil {
		m.blockedLabels = nil
	} else {
		m.blockedLabels = make(map[string]bool)
		for _, l := range blockedLabels {
			m.blockedLabels[l] = true
		}
	}
	m.AllowedLabels = allowedLabels
	m.BlockedLabels = blockedLabels

	m.filter = iradix.New()
	for _, prefix := range m.AllowedPrefixes {
		m.filter, _, _ = m.filter.Insert([]byte(prefix), true)
	}
	for _, prefix := range m.BlockedPrefixes {
		m.filter, _, _ = m.filter.Insert([]byte(prefix), false)
	}
}

func (m *Metrics) labelIsAllowed(label *Tag) bool {
	labelName := label.Name
	if m.blockedLabels != nil {
		if m.blockedLabels[labelName] {
			return false
		}
	}
	if m.allowedLabels != nil {
		return m.allowedLabels[labelName]
	}
	return true
}

func (m *Metrics) filterLabels(labels []Tag) []Tag {
	if labels == nil {
		return nil
	}
	toReturn := make([]Tag, 0, len(labels))
	for _, label := range labels {
		label := label
		if m.labelIsAllowed(&label) {
			toReturn = append(toReturn, label)
		}
	}
	return toReturn
}

// allowMetric returns whether the metric should be recorded, and the
// filtered labels to record it with
func (m *Metrics) allowMetric(key []string, labels []Tag) (bool, []Tag) {
	m.filterLock.RLock()
	defer m.filterLock.RUnlock()

	if m.filter == nil || m.filter.Len() == 0 {
		return m.Config.FilterDefault, m.filterLabels(labels)
	}

	_, allowed, ok := m.filter.Root().LongestPrefix([]byte(strings.Join(key, ".")))
	if !ok {
		return m.Config.FilterDefault, m.filterLabels(labels)
	}
	return allowed.(bool), m.filterLabels(labels)
}

// collectStats is used to periodically emit runtime stats
func (m *Metrics) collectStats() {
	for {
		time.Sleep(m.ProfileInterval)
		m.emitRuntimeStats()
	}
}

// emitRuntimeStats is invoked to emit the runtime stats
func (m *Metrics) emitRuntimeStats() {
	m.SetGauge([]string{"runtime", "num_goroutines"}, float32(runtime.NumGoroutine()))

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.SetGauge([]string{"runtime", "alloc_bytes"}, float32(stats.Alloc))
	m.SetGauge([]string{"runtime", "sys_bytes"}, float32(stats.Sys))
	m.SetGauge([]string{"runtime", "malloc_count"}, float32(stats.Mallocs))
	m.SetGauge([]string{"runtime", "free_count"}, float32(stats.Frees))
	m.SetGauge([]string{"runtime", "heap_objects"}, float32(stats.HeapObjects))
	m.SetGauge([]string{"runtime", "total_gc_pause_ns"}, float32(stats.PauseTotalNs))
	m.SetGauge([]string{"runtime", "total_gc_runs"}, float32(stats.NumGC))

	if num := stats.NumGC; num > m.lastNumGC {
		diff := num - m.lastNumGC
		if diff < 256 {
			for i := m.lastNumGC; i < num; i++ {
				pause := stats.PauseNs[i%256]
				m.AddSample([]string{"runtime", "gc_pause_ns"}, float32(pause))
			}
		}
		m.lastNumGC = num
	}
}

// insert inserts a value at an index into a slice
func insert(i int, v string, s []string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
