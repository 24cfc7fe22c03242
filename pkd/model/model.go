// Package model defines the domain entities of the local PKD:
// parsed artifacts, validated certificates and CRLs, and the
// passive-authentication invocation record.
package model

import (
	"crypto"
	"time"

	"github.com/google/uuid"
)

// FileFormat selects the parser strategy for an uploaded file
type FileFormat int

const (
	// FormatUnknown is an unrecognized upload
	FormatUnknown FileFormat = iota
	// EmrtdCompleteLdif is a full eMRTD PKD LDIF dump
	EmrtdCompleteLdif
	// EmrtdDeltaLdif is an incremental eMRTD PKD LDIF
	EmrtdDeltaLdif
	// CscaMasterListLdif is an LDIF carrying pkdMasterListContent entries
	CscaMasterListLdif
	// MasterListSignedCms is a raw CMS-signed Master List
	MasterListSignedCms
	// DscNonConformingLdif is the non-conforming DSC LDIF
	DscNonConformingLdif
)

var formatNames = map[FileFormat]string{
	FormatUnknown:        "UNKNOWN",
	EmrtdCompleteLdif:    "EMRTD_COMPLETE_LDIF",
	EmrtdDeltaLdif:       "EMRTD_DELTA_LDIF",
	CscaMasterListLdif:   "CSCA_MASTER_LIST_LDIF",
	MasterListSignedCms:  "MASTER_LIST_SIGNED_CMS",
	DscNonConformingLdif: "DSC_NON_CONFORMING_LDIF",
}

func (f FileFormat) String() string {
	return formatNames[f]
}

// ParseFileFormat translates a format name to FileFormat
func ParseFileFormat(s string) FileFormat {
	for f, name := range formatNames {
		if name == s {
			return f
		}
	}
	return FormatUnknown
}

// IsLdif returns true for the LDIF-framed formats
func (f FileFormat) IsLdif() bool {
	switch f {
	case EmrtdCompleteLdif, EmrtdDeltaLdif, CscaMasterListLdif, DscNonConformingLdif:
		return true
	}
	return false
}

// CertType classifies a certificate by its role in the eMRTD PKI
type CertType int

const (
	// CertTypeUnknown is a certificate that is neither CSCA nor DSC
	CertTypeUnknown CertType = iota
	// CertTypeCSCA is a Country Signing CA root
	CertTypeCSCA
	// CertTypeDSC is a Document Signer certificate
	CertTypeDSC
	// CertTypeDSCNC is a Document Signer flagged as non-conforming
	CertTypeDSCNC
)

var certTypeNames = map[CertType]string{
	CertTypeUnknown: "UNKNOWN",
	CertTypeCSCA:    "CSCA",
	CertTypeDSC:     "DSC",
	CertTypeDSCNC:   "DSC_NC",
}

func (t CertType) String() string {
	return certTypeNames[t]
}

// Status is the validation status of a stored artifact
type Status int

const (
	// StatusUnknown means the artifact was not validated yet
	StatusUnknown Status = iota
	// StatusValid passed all checks
	StatusValid
	// StatusInvalid failed at least one check with ERROR severity
	StatusInvalid
	// StatusExpired is past its notAfter
	StatusExpired
	// StatusNotYetValid is before its notBefore
	StatusNotYetValid
	// StatusRevoked appears in a trusted CRL
	StatusRevoked
)

var statusNames = map[Status]string{
	StatusUnknown:     "UNKNOWN",
	StatusValid:       "VALID",
	StatusInvalid:     "INVALID",
	StatusExpired:     "EXPIRED",
	StatusNotYetValid: "NOT_YET_VALID",
	StatusRevoked:     "REVOKED",
}

func (s Status) String() string {
	return statusNames[s]
}

// Severity qualifies a validation error
type Severity int

const (
	// SeverityError fails the artifact
	SeverityError Severity = iota
	// SeverityWarning is recorded but does not fail the artifact
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARNING"
	}
	return "ERROR"
}

// ValidityPeriod is the [notBefore, notAfter] window of a certificate,
// or [thisUpdate, nextUpdate] of a CRL; both bounds are UTC and inclusive
type ValidityPeriod struct {
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

// Contains reports whether t falls inside the window, with skew applied
// symmetrically on both bounds
func (v ValidityPeriod) Contains(t time.Time, skew time.Duration) bool {
	return !t.Before(v.NotBefore.Add(-skew)) && !t.After(v.NotAfter.Add(skew))
}

// SubjectInfo holds normalized subject DN components
type SubjectInfo struct {
	CountryCode  string `json:"country_code"`
	Organization string `json:"organization,omitempty"`
	OrgUnit      string `json:"org_unit,omitempty"`
	CommonName   string `json:"common_name"`
}

// IssuerInfo holds normalized issuer DN components
type IssuerInfo struct {
	CountryCode  string `json:"country_code"`
	Organization string `json:"organization,omitempty"`
	OrgUnit      string `json:"org_unit,omitempty"`
	CommonName   string `json:"common_name"`
	IsCA         bool   `json:"is_ca"`
}

// ValidationError is one check failure recorded on an artifact
type ValidationError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValidationResult summarizes the outcome of validating one artifact
type ValidationResult struct {
	OverallStatus    Status    `json:"overall_status"`
	SignatureValid   bool      `json:"signature_valid"`
	ChainValid       bool      `json:"chain_valid"`
	NotRevoked       bool      `json:"not_revoked"`
	ValidityValid    bool      `json:"validity_valid"`
	ConstraintsValid bool      `json:"constraints_valid"`
	ValidatedAt      time.Time `json:"validated_at"`
	DurationMs       int64     `json:"duration_ms"`
}

// Certificate is a validated trust-store member.
// Immutable after first persist, except Status and ValidationResult
// which may change on revalidation.
type Certificate struct {
	ID          uuid.UUID `json:"id"`
	UploadID    uuid.UUID `json:"upload_id"`
	Fingerprint string    `json:"fingerprint"`

	Raw          []byte           `json:"-"`
	PublicKey    crypto.PublicKey `json:"-"`
	SerialNumber string           `json:"serial_number"`

	Subject  SubjectInfo    `json:"subject"`
	Issuer   IssuerInfo     `json:"issuer"`
	Validity ValidityPeriod `json:"validity"`

	SubjectDN string `json:"subject_dn"`
	IssuerDN  string `json:"issuer_dn"`

	Type   CertType `json:"type"`
	Status Status   `json:"status"`

	Result ValidationResult  `json:"result"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// StatusDescription renders the directory "description" attribute:
// "VALID", or "<STATUS>: <err1>; <err2>; ..."
func (c *Certificate) StatusDescription() string {
	return statusDescription(c.Status, c.Errors)
}

// RevokedEntry is one revoked serial in a CRL
type RevokedEntry struct {
	SerialNumber   string    `json:"serial_number"`
	RevocationDate time.Time `json:"revocation_date"`
	Reason         int       `json:"reason,omitempty"`
}

// CRL is a validated certificate revocation list
type CRL struct {
	ID       uuid.UUID `json:"id"`
	UploadID uuid.UUID `json:"upload_id"`

	// IssuerCN is the bare CN used as the lookup key, e.g. "CSCA-KR"
	IssuerCN string `json:"issuer_cn"`
	// IssuerDN is the full issuer DN retained for signature checks
	IssuerDN    string `json:"issuer_dn"`
	CountryCode string `json:"country_code"`

	Validity     ValidityPeriod `json:"validity"`
	Raw          []byte         `json:"-"`
	RevokedCount int            `json:"revoked_count"`
	Revoked      []RevokedEntry `json:"revoked,omitempty"`

	Status Status            `json:"status"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsRevoked reports whether the serial appears in the revoked list
func (c *CRL) IsRevoked(serial string) bool {
	for _, r := range c.Revoked {
		if r.SerialNumber == serial {
			return true
		}
	}
	return false
}

// StatusDescription renders the directory "description" attribute
func (c *CRL) StatusDescription() string {
	return statusDescription(c.Status, c.Errors)
}

func statusDescription(s Status, errs []ValidationError) string {
	if s == StatusValid {
		return "VALID"
	}
	d := s.String() + ":"
	for i, e := range errs {
		if i > 0 {
			d += ";"
		}
		d += " " + e.Message
	}
	return d
}
