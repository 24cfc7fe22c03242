package audit

// Collector is an Auditor that buffers events in memory and forwards
// them to the Destination when Submit is called. The ingest pipeline
// uses it so that events for an upload appear in the trail only after
// the trust-store writes commit.
type Collector struct {
	Destination Auditor
	events      []*eventInfo
}

// Audit records a new event; it is kept in memory until Submit
func (c *Collector) Audit(source, eventType, identity, contextID string, entries uint64, message string) {
	if c.events == nil {
		c.events = make([]*eventInfo, 0, 16)
	}
	c.events = append(c.events, &eventInfo{
		source:    source,
		eventType: eventType,
		identity:  identity,
		contextID: contextID,
		entries:   entries,
		message:   message,
	})
}

// Submit flushes all collected events to the Destination auditor.
// If entries > 0 it is applied to events that did not set their own
// count, so the final artifact tally can be supplied after commit.
func (c *Collector) Submit(entries uint64) {
	for _, e := range c.events {
		re := withEntries(e, entries)
		c.Destination.Audit(re.source, re.eventType, re.identity, re.contextID, re.entries, re.message)
	}
	c.events = nil
}

// Close discards any collected events
func (c *Collector) Close() error {
	c.events = nil
	return nil
}

func withEntries(e *eventInfo, entries uint64) *eventInfo {
	if entries == 0 || e.entries != 0 {
		return e
	}
	return &eventInfo{
		source:    e.source,
		eventType: e.eventType,
		identity:  e.identity,
		contextID: e.contextID,
		entries:   entries,
		message:   e.message,
	}
}

type eventInfo struct {
	source    string
	eventType string
	identity  string
	contextID string
	entries   uint64
	message   string
}
