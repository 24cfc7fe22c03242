// Package audit records operator-visible events of the trust pipeline:
// uploads parsed, validated, published, revalidation sweeps and PA
// invocations. This is the operator trail; the per-invocation PA log
// and the per-upload fingerprint table live in the trust store.
package audit

import "io"

// Event sources
const (
	SourceIngest    = "ingest"
	SourceValidator = "validator"
	SourcePublisher = "publisher"
	SourcePA        = "pa"
)

// Event types
const (
	EventUploadReceived  = "upload_received"
	EventUploadParsed    = "upload_parsed"
	EventUploadValidated = "upload_validated"
	EventUploadPublished = "upload_published"
	EventUploadFailed    = "upload_failed"
	EventRevalidated     = "revalidated"
	EventPACompleted     = "pa_completed"
)

// Auditor defines an interface that can receive audit events
type Auditor interface {
	// Call at shutdown to cleanly close the audit destination
	io.Closer

	// Audit records one event.
	//
	// source     the pipeline area that raised the event
	// eventType  the specific event
	// identity   the operator that triggered it, typically <role>/<cn>
	// contextID  per request correlation ID for cross service log joins
	// entries    number of artifacts the event covers, 0 if not applicable
	// message    event specific details
	Audit(source, eventType, identity, contextID string, entries uint64, message string)
}
