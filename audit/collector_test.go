package audit_test

import (
	"testing"

	"github.com/go-phorce/pkd/audit"
	"github.com/go-phorce/pkd/audit/audittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CollectorSubmit(t *testing.T) {
	dest := &audittest.Recorder{}
	c := audit.Collector{Destination: dest}

	c.Audit(audit.SourceIngest, audit.EventUploadParsed, "operator/bob", "ctx-1", 0, "parsed 10 entries")
	c.Audit(audit.SourceValidator, audit.EventUploadValidated, "operator/bob", "ctx-1", 0, "validated")
	assert.Equal(t, 0, dest.Len(), "events must not reach the destination before Submit")

	c.Submit(10)
	require.Equal(t, 2, dest.Len())
	assert.Equal(t, uint64(10), dest.Get(0).Entries)
	assert.Equal(t, audit.EventUploadValidated, dest.Get(1).EventType)

	// a second submit is a no-op
	c.Submit(10)
	assert.Equal(t, 2, dest.Len())
}

func Test_CollectorPreservesEntries(t *testing.T) {
	dest := &audittest.Recorder{}
	c := audit.Collector{Destination: dest}

	c.Audit(audit.SourcePublisher, audit.EventUploadPublished, "operator/bob", "ctx-2", 7, "published")
	c.Submit(99)
	require.Equal(t, 1, dest.Len())
	assert.Equal(t, uint64(7), dest.Get(0).Entries)
}

func Test_CollectorClose(t *testing.T) {
	dest := &audittest.Recorder{}
	c := audit.Collector{Destination: dest}

	c.Audit(audit.SourceIngest, audit.EventUploadFailed, "operator/bob", "ctx-3", 0, "failed")
	require.NoError(t, c.Close())
	c.Submit(0)
	assert.Equal(t, 0, dest.Len())
}
