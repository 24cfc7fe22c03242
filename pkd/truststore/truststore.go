// Package truststore defines the repository contracts between the PKD
// core and its persistence. Implementations must enforce fingerprint
// uniqueness as a store-level constraint and surface conflicts as
// ErrAlreadyExists so that callers can treat re-uploads as idempotent.
package truststore

import (
	"context"

	"github.com/go-phorce/pkd/pkd/model"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// ErrAlreadyExists is returned on a unique-fingerprint conflict.
// Callers treat it as idempotent success.
var ErrAlreadyExists = errors.New("entry already exists")

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("entry not found")

// CountrySummary is one row of the per-country artifact census
type CountrySummary struct {
	CountryCode string         `json:"country_code"`
	CertType    model.CertType `json:"cert_type"`
	Count       int            `json:"count"`
}

// CertificateRepository stores validated certificates keyed by
// fingerprint, with subject-DN and upload lookups
type CertificateRepository interface {
	// FindExistingFingerprints returns the subset of the given
	// fingerprints that are already stored; one bulk call, used by the
	// parser's batch duplicate-check protocol
	FindExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error)

	// Save persists one certificate; ErrAlreadyExists on conflict
	Save(ctx context.Context, cert *model.Certificate) error

	// SaveAll persists a batch; any fingerprint conflict fails the
	// whole batch with ErrAlreadyExists and the caller falls back to
	// per-entity Save
	SaveAll(ctx context.Context, certs []*model.Certificate) error

	// FindByFingerprint returns the certificate, or ErrNotFound
	FindByFingerprint(ctx context.Context, fingerprint string) (*model.Certificate, error)

	// FindBySubjectDN returns the certificate with the subject DN,
	// or ErrNotFound; used by the PA engine's CSCA lookup
	FindBySubjectDN(ctx context.Context, subjectDN string) (*model.Certificate, error)

	// FindByUploadID returns the certificates created by the upload
	FindByUploadID(ctx context.Context, uploadID uuid.UUID) ([]*model.Certificate, error)

	// FindByTypeAndStatuses returns certificates of the type whose
	// status is in the list; used to build the CSCA cache
	FindByTypeAndStatuses(ctx context.Context, ct model.CertType, statuses []model.Status) ([]*model.Certificate, error)

	// UpdateValidation replaces the status and validation result of a
	// stored certificate; all other fields are immutable
	UpdateValidation(ctx context.Context, fingerprint string, status model.Status, result model.ValidationResult, errs []model.ValidationError) error

	// CountByCountryAndType returns the per-country census
	CountByCountryAndType(ctx context.Context) ([]CountrySummary, error)
}

// CRLRepository stores validated CRLs keyed by issuer CN and country
type CRLRepository interface {
	// Save persists one CRL, replacing a previous CRL of the same
	// issuer and country
	Save(ctx context.Context, crl *model.CRL) error

	// SaveAll persists a batch
	SaveAll(ctx context.Context, crls []*model.CRL) error

	// FindByIssuerAndCountry returns the CRL keyed by the bare issuer
	// CN and country code, or ErrNotFound
	FindByIssuerAndCountry(ctx context.Context, issuerCN, countryCode string) (*model.CRL, error)

	// FindByUploadID returns the CRLs created by the upload
	FindByUploadID(ctx context.Context, uploadID uuid.UUID) ([]*model.CRL, error)
}

// UploadAuditRepository records the (uploadID, fingerprint) pairs of
// every parsed certificate, including duplicates that created no new
// trust-store entry
type UploadAuditRepository interface {
	// RecordParsed appends one audit pair
	RecordParsed(ctx context.Context, uploadID uuid.UUID, fingerprint string) error

	// FindUploadsByFingerprint returns every upload that carried the
	// fingerprint
	FindUploadsByFingerprint(ctx context.Context, fingerprint string) ([]uuid.UUID, error)

	// CountByUploadID returns the number of audit pairs for the upload
	CountByUploadID(ctx context.Context, uploadID uuid.UUID) (int, error)
}

// InvocationRepository persists completed PA invocations together with
// their audit logs; the write is atomic so a stored invocation always
// carries its full log
type InvocationRepository interface {
	Save(ctx context.Context, inv *model.PAInvocation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PAInvocation, error)
}
