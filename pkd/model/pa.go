package model

import (
	"time"

	"github.com/google/uuid"
)

// Step identifies a phase of the passive-authentication state machine
type Step string

// PA steps in execution order
const (
	StepVerificationStarted   Step = "VERIFICATION_STARTED"
	StepCertChain             Step = "CERT_CHAIN"
	StepSodSignature          Step = "SOD_SIGNATURE"
	StepDataGroupHash         Step = "DATA_GROUP_HASH"
	StepCrlCheck              Step = "CRL_CHECK"
	StepVerificationCompleted Step = "VERIFICATION_COMPLETED"
)

// StepStatus qualifies an audit entry within a step
type StepStatus string

// Step statuses
const (
	StepStarted    StepStatus = "STARTED"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepFailed     StepStatus = "FAILED"
)

// AuditLogEntry is one append-only record in a PA invocation's log.
// Sequence numbers are gapless, monotonic from 1.
type AuditLogEntry struct {
	Sequence     int                    `json:"sequence"`
	Timestamp    time.Time              `json:"timestamp"`
	Level        string                 `json:"level"`
	Step         Step                   `json:"step"`
	StepStatus   StepStatus             `json:"step_status"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorCode    ErrorCode              `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// PAStatus is the overall outcome of a PA invocation
type PAStatus string

// PA outcomes
const (
	PAValid PAStatus = "VALID"
	// PAInvalid means the chip data failed verification
	PAInvalid PAStatus = "INVALID"
	// PAError means the verification could not be carried out
	PAError PAStatus = "ERROR"
)

// PAErrorRecord is a caller-visible failure from a PA invocation
type PAErrorRecord struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Step    Step      `json:"step"`
}

// RequestMetadata is caller-supplied context preserved in the audit log
type RequestMetadata struct {
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// PAInvocation records one passive-authentication run.
// Never mutated after completion.
type PAInvocation struct {
	ID          uuid.UUID `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	OverallStatus         PAStatus `json:"overall_status"`
	CertificateChainValid bool     `json:"certificate_chain_valid"`
	SodSignatureValid     bool     `json:"sod_signature_valid"`

	TotalDataGroups   int `json:"total_data_groups"`
	ValidDataGroups   int `json:"valid_data_groups"`
	InvalidDataGroups int `json:"invalid_data_groups"`

	IssuingCountry string          `json:"issuing_country,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	Metadata       RequestMetadata `json:"metadata,omitempty"`

	Errors   []PAErrorRecord `json:"errors,omitempty"`
	AuditLog []AuditLogEntry `json:"audit_log"`
}
