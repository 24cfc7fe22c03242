// Package validator promotes parsed certificate and CRL data into
// validated trust-store entities. Validation is two-pass: CSCAs are
// verified and committed first, then DSCs are chained against an
// in-memory CSCA cache built from the store. Per-entity failures are
// recorded on the entity; only infrastructure faults abort.
package validator

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "validator")

// ProgressFunc receives coarse progress: a stage label and percentage
type ProgressFunc func(stage string, percent int)

// Response summarizes one validation invocation
type Response struct {
	UploadID uuid.UUID `json:"upload_id" codec:"upload_id"`

	Total       int `json:"total" codec:"total"`
	Valid       int `json:"valid" codec:"valid"`
	Invalid     int `json:"invalid" codec:"invalid"`
	Expired     int `json:"expired" codec:"expired"`
	NotYetValid int `json:"not_yet_valid" codec:"not_yet_valid"`
	Duplicates  int `json:"duplicates" codec:"duplicates"`
	CRLs        int `json:"crls" codec:"crls"`

	CertificateIDs []uuid.UUID `json:"certificate_ids,omitempty" codec:"certificate_ids"`
}

// Validator validates parsed files against the trust store
type Validator struct {
	certs truststore.CertificateRepository
	crls  truststore.CRLRepository
	audit truststore.UploadAuditRepository

	batchSize     int
	skew          time.Duration
	cacheMaxBytes int
}

// New returns a Validator
func New(certs truststore.CertificateRepository, crls truststore.CRLRepository, audit truststore.UploadAuditRepository, cfg *config.Config) *Validator {
	return &Validator{
		certs:         certs,
		crls:          crls,
		audit:         audit,
		batchSize:     cfg.GetBatchSize(),
		skew:          cfg.GetClockSkewTolerance(),
		cacheMaxBytes: cfg.GetCSCACacheMaxBytes(),
	}
}

// Validate runs the two-pass algorithm over the parsed file. The
// progress callback may be nil.
func (v *Validator) Validate(ctx context.Context, pf *model.ParsedFile, progress ProgressFunc) (*Response, error) {
	started := time.Now()
	defer metrics.MeasureSince([]string{"validator", "validate"}, started)

	res := &Response{UploadID: pf.UploadID}
	report := func(stage string, pct int) {
		if progress != nil {
			progress(stage, pct)
		}
	}

	// audit linkage is recorded for every parsed certificate,
	// duplicates included
	for _, cd := range pf.Certificates {
		if err := v.audit.RecordParsed(ctx, pf.UploadID, cd.Fingerprint); err != nil {
			return nil, errors.Annotate(err, "unable to record upload audit")
		}
		if cd.AlreadyStored {
			res.Duplicates++
		}
	}
	report("audit", 10)

	// Pass 1: CSCAs
	if err := v.validatePass(ctx, pf, res, report, "csca", func(cd *model.CertificateData) bool {
		return cd.Type == model.CertTypeCSCA
	}, func(cd *model.CertificateData) *model.Certificate {
		return v.validateCSCA(pf.UploadID, cd)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	report("csca", 40)

	cache, err := v.buildCSCACache(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	report("cache", 50)

	// Pass 2: DSCs, including non-conforming and unclassified
	if err := v.validatePass(ctx, pf, res, report, "dsc", func(cd *model.CertificateData) bool {
		return cd.Type != model.CertTypeCSCA
	}, func(cd *model.CertificateData) *model.Certificate {
		return v.validateDSC(pf.UploadID, cd, cache)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	report("dsc", 80)

	crls, err := v.validateCRLs(ctx, pf, cache)
	if err != nil {
		return nil, errors.Trace(err)
	}
	res.CRLs = crls
	report("crl", 100)

	logger.KV(xlog.INFO, "api", "Validate",
		"upload", pf.UploadID.String(),
		"total", res.Total,
		"valid", res.Valid,
		"invalid", res.Invalid,
		"expired", res.Expired,
		"duplicates", res.Duplicates,
		"crls", res.CRLs)
	return res, nil
}

// validatePass runs one pass over the matching entries, flushing saves
// in batches. Cancellation is honored at batch boundaries.
func (v *Validator) validatePass(ctx context.Context, pf *model.ParsedFile, res *Response, report ProgressFunc, stage string, match func(*model.CertificateData) bool, validate func(*model.CertificateData) *model.Certificate) error {
	var selected []*model.CertificateData
	for i := range pf.Certificates {
		cd := &pf.Certificates[i]
		if !cd.AlreadyStored && match(cd) {
			selected = append(selected, cd)
		}
	}

	batch := make([]*model.Certificate, 0, v.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "%s", model.CodeCancelled)
		}
		if err := v.saveBatch(ctx, batch); err != nil {
			return errors.Trace(err)
		}
		batch = batch[:0]
		return nil
	}

	for i, cd := range selected {
		cert := validate(cd)
		v.tally(res, cert)
		res.CertificateIDs = append(res.CertificateIDs, cert.ID)
		batch = append(batch, cert)
		if len(batch) >= v.batchSize {
			if err := flush(); err != nil {
				return errors.Trace(err)
			}
			report(stage, (i+1)*100/len(selected))
		}
	}
	return flush()
}

func (v *Validator) tally(res *Response, cert *model.Certificate) {
	res.Total++
	switch cert.Status {
	case model.StatusValid:
		res.Valid++
	case model.StatusExpired:
		res.Expired++
	case model.StatusNotYetValid:
		res.NotYetValid++
	default:
		res.Invalid++
	}
	metrics.IncrCounter([]string{"validator", "certs"}, 1,
		metrics.Tag{Name: "type", Value: cert.Type.String()},
		metrics.Tag{Name: "status", Value: cert.Status.String()})
}

// saveBatch persists the batch; a fingerprint conflict falls back to
// per-entity saves, and conflicts there count as idempotent success
func (v *Validator) saveBatch(ctx context.Context, batch []*model.Certificate) error {
	err := v.certs.SaveAll(ctx, batch)
	if err == nil {
		return nil
	}
	if errors.Cause(err) != truststore.ErrAlreadyExists {
		return errors.Annotate(err, "unable to save batch")
	}

	logger.KV(xlog.WARNING, "api", "saveBatch", "reason", "conflict_fallback", "batch", len(batch))
	for _, cert := range batch {
		err := v.certs.Save(ctx, cert)
		if err == nil {
			continue
		}
		if errors.Cause(err) == truststore.ErrAlreadyExists {
			logger.KV(xlog.WARNING, "api", "saveBatch", "conflict", cert.Fingerprint)
			continue
		}
		return errors.Annotate(err, "unable to save certificate")
	}
	return nil
}

// validateCSCA verifies self-signature, validity window and basic
// constraints
func (v *Validator) validateCSCA(uploadID uuid.UUID, cd *model.CertificateData) *model.Certificate {
	started := time.Now()
	cert := newCertificate(uploadID, cd)
	result := model.ValidationResult{NotRevoked: true}
	var errs []model.ValidationError

	parsed, err := x509.ParseCertificate(cd.Raw)
	if err != nil {
		// the parser produced Raw from a parsed certificate; this is
		// unreachable short of memory corruption
		errs = append(errs, validationError(model.CodeSignatureInvalid, "unable to parse certificate"))
		finalize(cert, &result, model.StatusInvalid, errs, started)
		return cert
	}

	if err := parsed.CheckSignature(parsed.SignatureAlgorithm, parsed.RawTBSCertificate, parsed.Signature); err != nil {
		errs = append(errs, validationError(model.CodeSignatureInvalid, "self-signature verification failed"))
	} else {
		result.SignatureValid = true
		result.ChainValid = true
	}

	status := v.checkValidity(cd, &result, &errs)

	if !parsed.IsCA {
		errs = append(errs, validationError(model.CodeConstraintsInvalid, "basic constraints CA flag not set"))
	} else {
		result.ConstraintsValid = true
	}

	if !result.SignatureValid || !result.ConstraintsValid {
		status = model.StatusInvalid
	}
	finalize(cert, &result, status, errs, started)
	return cert
}

// validateDSC chains the certificate against the CSCA cache; no
// repository queries are made here
func (v *Validator) validateDSC(uploadID uuid.UUID, cd *model.CertificateData, cache *cscaCache) *model.Certificate {
	started := time.Now()
	cert := newCertificate(uploadID, cd)
	result := model.ValidationResult{NotRevoked: true}
	var errs []model.ValidationError

	parsed, err := x509.ParseCertificate(cd.Raw)
	if err != nil {
		errs = append(errs, validationError(model.CodeSignatureInvalid, "unable to parse certificate"))
		finalize(cert, &result, model.StatusInvalid, errs, started)
		return cert
	}

	chainBroken := false
	issuer := cache.find(cd.IssuerDN)
	if issuer == nil {
		chainBroken = true
		errs = append(errs, validationError(model.CodeChainIncomplete, "issuing CSCA not in trust store"))
	} else if err := parsed.CheckSignatureFrom(issuer.parsed); err != nil {
		chainBroken = true
		errs = append(errs, validationError(model.CodeSignatureInvalid, "signature verification against CSCA failed"))
	} else {
		result.SignatureValid = true
		result.ChainValid = true
	}

	status := v.checkValidity(cd, &result, &errs)
	result.ConstraintsValid = true

	if chainBroken {
		status = model.StatusInvalid
	}
	finalize(cert, &result, status, errs, started)
	return cert
}

// checkValidity applies the clock-skewed window check and returns the
// status implied by the window alone
func (v *Validator) checkValidity(cd *model.CertificateData, result *model.ValidationResult, errs *[]model.ValidationError) model.Status {
	now := time.Now().UTC()
	if cd.Validity.Contains(now, v.skew) {
		result.ValidityValid = true
		return model.StatusValid
	}
	if now.Before(cd.Validity.NotBefore) {
		*errs = append(*errs, validationError(model.CodeNotYetValid, "certificate not yet valid"))
		return model.StatusNotYetValid
	}
	*errs = append(*errs, validationError(model.CodeExpired, "certificate expired"))
	return model.StatusExpired
}

func newCertificate(uploadID uuid.UUID, cd *model.CertificateData) *model.Certificate {
	return &model.Certificate{
		ID:           uuid.New(),
		UploadID:     uploadID,
		Fingerprint:  cd.Fingerprint,
		Raw:          cd.Raw,
		PublicKey:    cd.PublicKey,
		SerialNumber: cd.SerialNumber,
		Subject:      cd.Subject,
		Issuer:       cd.Issuer,
		Validity:     cd.Validity,
		SubjectDN:    cd.SubjectDN,
		IssuerDN:     cd.IssuerDN,
		Type:         cd.Type,
	}
}

func finalize(cert *model.Certificate, result *model.ValidationResult, status model.Status, errs []model.ValidationError, started time.Time) {
	result.OverallStatus = status
	result.ValidatedAt = time.Now().UTC()
	result.DurationMs = time.Since(started).Milliseconds()
	cert.Status = status
	cert.Result = *result
	cert.Errors = errs
}

func validationError(code model.ErrorCode, msg string) model.ValidationError {
	return model.ValidationError{
		Code:       code,
		Message:    msg,
		Severity:   model.SeverityError,
		OccurredAt: time.Now().UTC(),
	}
}

func warning(code model.ErrorCode, msg string) model.ValidationError {
	return model.ValidationError{
		Code:       code,
		Message:    msg,
		Severity:   model.SeverityWarning,
		OccurredAt: time.Now().UTC(),
	}
}
