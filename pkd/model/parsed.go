package model

import (
	"crypto"
	"time"

	"github.com/google/uuid"
)

// CertificateData is the transient parser output for one certificate;
// it is consumed by the validator and then discarded
type CertificateData struct {
	Raw          []byte
	Fingerprint  string
	SubjectDN    string
	IssuerDN     string
	Subject      SubjectInfo
	Issuer       IssuerInfo
	SerialNumber string
	Validity     ValidityPeriod
	Type         CertType
	CountryCode  string
	PublicKey    crypto.PublicKey

	// AlreadyStored is set when the fingerprint was found in the trust
	// store's existence index during the batch duplicate check; the
	// validator records only the audit pair for such entries
	AlreadyStored bool
}

// CRLData is the transient parser output for one CRL
type CRLData struct {
	Raw          []byte
	IssuerDN     string
	IssuerCN     string
	CountryCode  string
	ThisUpdate   time.Time
	NextUpdate   time.Time
	RevokedCount int
	Revoked      []RevokedEntry
}

// ParsingError is attached to the ParsedFile when an individual entry
// cannot be decoded; the parse continues past it
type ParsingError struct {
	Code    ErrorCode `json:"code"`
	Locator string    `json:"locator"`
	Message string    `json:"message"`
}

// ParsedFile aggregates everything extracted from one upload.
// Within one ParsedFile a fingerprint appears at most once.
type ParsedFile struct {
	UploadID uuid.UUID
	Format   FileFormat

	Certificates []CertificateData
	CRLs         []CRLData
	Errors       []ParsingError

	// Progress counters
	TotalEntries     int
	ProcessedEntries int
	DuplicateCount   int

	seen map[string]bool
}

// NewParsedFile creates an empty aggregate for the upload
func NewParsedFile(uploadID uuid.UUID, format FileFormat) *ParsedFile {
	return &ParsedFile{
		UploadID: uploadID,
		Format:   format,
		seen:     map[string]bool{},
	}
}

// Seen marks the fingerprint as present in this file, returning true
// if it was already marked. This enforces the per-file dedup invariant.
func (p *ParsedFile) Seen(fingerprint string) bool {
	if p.seen == nil {
		p.seen = map[string]bool{}
	}
	if p.seen[fingerprint] {
		return true
	}
	p.seen[fingerprint] = true
	return false
}

// AddError appends a parsing error without aborting the parse
func (p *ParsedFile) AddError(code ErrorCode, locator, message string) {
	p.Errors = append(p.Errors, ParsingError{Code: code, Locator: locator, Message: message})
}
