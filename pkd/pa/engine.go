// Package pa implements passive authentication of an eMRTD chip read:
// unwrap the EF.SOD envelope, extract the signing DSC, chain it to a
// stored CSCA, verify the SOD's CMS signature and compare data-group
// hashes. The run is a fail-fast phase sequence, except the hash
// comparison which always checks every data group. Every phase emits
// audit entries, and the finished invocation is persisted atomically
// with its log.
package pa

import (
	"context"
	"crypto"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"sort"
	"time"

	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/go-phorce/pkd/xpki/certutil"
	"github.com/go-phorce/pkd/xpki/cms"
	"github.com/go-phorce/pkd/xpki/oid"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "pa")

// phase names recorded in audit messages
const (
	phaseStarted      = "VERIFICATION_STARTED"
	phaseUnwrapSod    = "UNWRAP_SOD"
	phaseExtractDsc   = "EXTRACT_DSC"
	phaseLookupCsca   = "LOOKUP_CSCA"
	phaseTrustChain   = "VERIFY_TRUST_CHAIN"
	phaseSodSignature = "VERIFY_SOD_SIGNATURE"
	phaseExtractDG    = "EXTRACT_DG_HASHES"
	phaseVerifyDG     = "VERIFY_DG_HASHES"
	phaseCrlCheck     = "CRL_CHECK"
	phaseCompleted    = "VERIFICATION_COMPLETED"
)

// Request carries one passport read to authenticate
type Request struct {
	SodBytes   []byte
	DataGroups map[int][]byte

	IssuingCountry string
	DocumentNumber string
	Metadata       model.RequestMetadata
}

// Engine runs passive authentication against the trust store
type Engine struct {
	certs       truststore.CertificateRepository
	crls        truststore.CRLRepository
	invocations truststore.InvocationRepository

	skew      time.Duration
	strictCRL bool
	allowed   map[crypto.Hash]bool
}

// New returns a PA Engine. The configured digest allow-list is
// resolved here so that a misconfigured algorithm fails construction
// rather than a verification run.
func New(certs truststore.CertificateRepository, crls truststore.CRLRepository, invocations truststore.InvocationRepository, cfg *config.Config) (*Engine, error) {
	names := cfg.GetAllowedAlgorithms()
	if err := oid.ResolveAllowList(names); err != nil {
		return nil, errors.Annotate(err, "invalid digest allow-list")
	}
	allowed := make(map[crypto.Hash]bool, len(names))
	for _, name := range names {
		info, _ := oid.HashAlgorithmByName(name)
		allowed[info.HashFunc()] = true
	}
	return &Engine{
		certs:       certs,
		crls:        crls,
		invocations: invocations,
		skew:        cfg.GetClockSkewTolerance(),
		strictCRL:   cfg.StrictCRLMode,
		allowed:     allowed,
	}, nil
}

// run is the mutable state of one invocation
type run struct {
	inv *model.PAInvocation
	log *auditLog

	sd   *cms.SignedData
	dsc  *x509.Certificate
	csca *model.Certificate
	lds  *cms.LDSSecurityObject
}

// AuthenticatePassport verifies one passport read. Data failures are
// reported through the returned invocation, not as an error; an error
// is returned only when the invocation record cannot be persisted.
func (e *Engine) AuthenticatePassport(ctx context.Context, req *Request) (*model.PAInvocation, error) {
	started := time.Now()
	defer metrics.MeasureSince([]string{"pa", "authenticate"}, started)

	r := &run{
		inv: &model.PAInvocation{
			ID:             uuid.New(),
			StartedAt:      started.UTC(),
			OverallStatus:  model.PAValid,
			IssuingCountry: req.IssuingCountry,
			DocumentNumber: req.DocumentNumber,
			Metadata:       req.Metadata,
		},
		log: &auditLog{},
	}

	r.log.started(model.StepVerificationStarted, phaseStarted)
	r.log.completed(model.StepVerificationStarted, phaseStarted, map[string]interface{}{
		"data_groups": len(req.DataGroups),
	})

	phases := []func(context.Context, *Request, *run) bool{
		e.unwrapSod,
		e.extractDsc,
		e.lookupCsca,
		e.verifyTrustChain,
		e.verifySodSignature,
		e.extractDGHashes,
		e.verifyDGHashes,
		e.crlCheck,
	}
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			e.fail(r, model.StepVerificationCompleted, phaseCompleted, model.PAError, model.CodeCancelled, "verification cancelled", nil)
			break
		}
		if !phase(ctx, req, r) {
			break
		}
	}

	return e.finalize(ctx, r, started)
}

// fail records the failure and downgrades the overall status; INVALID
// never overrides an earlier ERROR
func (e *Engine) fail(r *run, step model.Step, phase string, status model.PAStatus, code model.ErrorCode, msg string, details map[string]interface{}) {
	r.log.failed(step, phase, code, msg, details)
	r.inv.Errors = append(r.inv.Errors, model.PAErrorRecord{Code: code, Message: msg, Step: step})
	if r.inv.OverallStatus != model.PAError {
		r.inv.OverallStatus = status
	}
}

func (e *Engine) unwrapSod(_ context.Context, req *Request, r *run) bool {
	r.log.started(model.StepCertChain, phaseUnwrapSod)
	der, err := cms.UnwrapSOD(req.SodBytes)
	if err != nil {
		e.fail(r, model.StepCertChain, phaseUnwrapSod, model.PAInvalid, model.CodeInvalidSodFormat, "unrecognized SOD envelope", nil)
		return false
	}
	sd, err := cms.ParseSignedData(der)
	if err != nil {
		e.fail(r, model.StepCertChain, phaseUnwrapSod, model.PAInvalid, model.CodeInvalidSodFormat, "unable to parse SOD content", nil)
		return false
	}
	r.sd = sd
	r.log.completed(model.StepCertChain, phaseUnwrapSod, nil)
	return true
}

func (e *Engine) extractDsc(_ context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepCertChain, phaseExtractDsc)
	if len(r.sd.Certificates) == 0 {
		e.fail(r, model.StepCertChain, phaseExtractDsc, model.PAInvalid, model.CodeDscExtractionFailed, "SOD carries no certificates", nil)
		return false
	}
	// the DSC travels inside the SOD itself, never looked up in the
	// directory
	r.dsc = r.sd.Certificates[0]
	r.log.completed(model.StepCertChain, phaseExtractDsc, map[string]interface{}{
		"subject": r.dsc.Subject.String(),
		"serial":  serialHex(r.dsc),
	})
	return true
}

func (e *Engine) lookupCsca(ctx context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepCertChain, phaseLookupCsca)
	issuerDN := certutil.NameToString(r.dsc.Issuer)
	csca, err := e.certs.FindBySubjectDN(ctx, issuerDN)
	if err != nil {
		if errors.Cause(err) == truststore.ErrNotFound {
			e.fail(r, model.StepCertChain, phaseLookupCsca, model.PAInvalid, model.CodeCscaNotFound, "issuing CSCA not in trust store", map[string]interface{}{
				"issuer": issuerDN,
			})
			return false
		}
		e.fail(r, model.StepCertChain, phaseLookupCsca, model.PAError, model.CodeRepositoryUnavailable, "trust store lookup failed", nil)
		return false
	}
	r.csca = csca
	r.log.completed(model.StepCertChain, phaseLookupCsca, map[string]interface{}{
		"csca": csca.SubjectDN,
	})
	return true
}

func (e *Engine) verifyTrustChain(_ context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepCertChain, phaseTrustChain)
	csca, err := x509.ParseCertificate(r.csca.Raw)
	if err != nil {
		e.fail(r, model.StepCertChain, phaseTrustChain, model.PAError, model.CodeRepositoryUnavailable, "stored CSCA is unreadable", nil)
		return false
	}
	if err := r.dsc.CheckSignatureFrom(csca); err != nil {
		e.fail(r, model.StepCertChain, phaseTrustChain, model.PAInvalid, model.CodeTrustChainInvalid, "DSC signature verification failed", nil)
		return false
	}
	now := time.Now().UTC()
	window := model.ValidityPeriod{NotBefore: r.dsc.NotBefore, NotAfter: r.dsc.NotAfter}
	if !window.Contains(now, e.skew) {
		e.fail(r, model.StepCertChain, phaseTrustChain, model.PAInvalid, model.CodeTrustChainInvalid, "DSC outside validity window", nil)
		return false
	}
	r.inv.CertificateChainValid = true
	r.log.completed(model.StepCertChain, phaseTrustChain, nil)
	return true
}

func (e *Engine) verifySodSignature(_ context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepSodSignature, phaseSodSignature)
	if len(r.sd.Signers) != 1 {
		e.fail(r, model.StepSodSignature, phaseSodSignature, model.PAInvalid, model.CodeSodSignatureInvalid, "SOD must carry exactly one signer", map[string]interface{}{
			"signers": len(r.sd.Signers),
		})
		return false
	}
	if err := r.sd.VerifySigner(r.sd.Signers[0], r.dsc); err != nil {
		e.fail(r, model.StepSodSignature, phaseSodSignature, model.PAInvalid, model.CodeSodSignatureInvalid, "SOD signature verification failed", nil)
		return false
	}
	r.inv.SodSignatureValid = true
	r.log.completed(model.StepSodSignature, phaseSodSignature, nil)
	return true
}

func (e *Engine) extractDGHashes(_ context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepDataGroupHash, phaseExtractDG)
	lds, err := cms.ParseLDSSecurityObject(r.sd.Content)
	if err != nil {
		e.fail(r, model.StepDataGroupHash, phaseExtractDG, model.PAInvalid, model.CodeInvalidSodFormat, "unable to parse LDSSecurityObject", nil)
		return false
	}
	r.lds = lds
	r.log.completed(model.StepDataGroupHash, phaseExtractDG, map[string]interface{}{
		"declared": len(lds.DataGroupHashes),
	})
	return true
}

// verifyDGHashes checks every input data group; a mismatch fails the
// invocation but does not stop the remaining comparisons
func (e *Engine) verifyDGHashes(_ context.Context, req *Request, r *run) bool {
	r.log.started(model.StepDataGroupHash, phaseVerifyDG)
	algo, err := oid.HashAlgorithmByOID(r.lds.HashAlgorithm.Algorithm)
	if err != nil {
		e.fail(r, model.StepDataGroupHash, phaseVerifyDG, model.PAInvalid, model.CodeInvalidSodFormat, "unsupported SOD hash algorithm", nil)
		return false
	}
	if !e.allowed[algo.HashFunc()] {
		e.fail(r, model.StepDataGroupHash, phaseVerifyDG, model.PAInvalid, model.CodeInvalidSodFormat, "SOD hash algorithm not allow-listed", map[string]interface{}{
			"algorithm": algo.Name(),
		})
		return false
	}
	h := algo.HashFunc()

	numbers := make([]int, 0, len(req.DataGroups))
	for n := range req.DataGroups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	r.inv.TotalDataGroups = len(numbers)
	for _, n := range numbers {
		expected := r.lds.HashFor(n)
		if expected == nil {
			r.inv.InvalidDataGroups++
			e.fail(r, model.StepDataGroupHash, phaseVerifyDG, model.PAInvalid, model.CodeUndeclaredDataGroup, "data group not declared in SOD", map[string]interface{}{
				"dg": n,
			})
			continue
		}
		hasher := h.New()
		hasher.Write(req.DataGroups[n])
		actual := hasher.Sum(nil)
		if subtle.ConstantTimeCompare(expected, actual) == 1 {
			r.inv.ValidDataGroups++
			r.log.progress(model.StepDataGroupHash, levelInfo, "data group hash verified", map[string]interface{}{
				"dg":   n,
				"hash": hex.EncodeToString(actual),
			}, "")
			continue
		}
		r.inv.InvalidDataGroups++
		e.fail(r, model.StepDataGroupHash, phaseVerifyDG, model.PAInvalid, model.CodeDataGroupHashMismatch, "data group hash mismatch", map[string]interface{}{
			"dg":       n,
			"expected": hex.EncodeToString(expected),
			"actual":   hex.EncodeToString(actual),
		})
	}

	// SOD-declared groups absent from the input are advisory only
	for _, dg := range r.lds.DataGroupHashes {
		if _, ok := req.DataGroups[dg.DataGroupNumber]; !ok {
			r.log.progress(model.StepDataGroupHash, levelWarning, "declared data group not provided", map[string]interface{}{
				"dg": dg.DataGroupNumber,
			}, "")
		}
	}

	r.log.completed(model.StepDataGroupHash, phaseVerifyDG, map[string]interface{}{
		"valid":   r.inv.ValidDataGroups,
		"invalid": r.inv.InvalidDataGroups,
	})
	return true
}

// crlCheck is best-effort: a missing CRL is a warning unless strict
// mode promotes it to a failure
func (e *Engine) crlCheck(ctx context.Context, _ *Request, r *run) bool {
	r.log.started(model.StepCrlCheck, phaseCrlCheck)
	crl, err := e.crls.FindByIssuerAndCountry(ctx, r.csca.Subject.CommonName, r.csca.Subject.CountryCode)
	if err != nil {
		if errors.Cause(err) == truststore.ErrNotFound {
			if e.strictCRL {
				e.fail(r, model.StepCrlCheck, phaseCrlCheck, model.PAInvalid, model.CodeCrlUnavailable, "no CRL for DSC issuer", nil)
				return false
			}
			r.log.progress(model.StepCrlCheck, levelWarning, "no CRL for DSC issuer", nil, model.CodeCrlUnavailable)
			r.log.completed(model.StepCrlCheck, phaseCrlCheck, nil)
			return true
		}
		e.fail(r, model.StepCrlCheck, phaseCrlCheck, model.PAError, model.CodeRepositoryUnavailable, "CRL lookup failed", nil)
		return false
	}
	if crl.IsRevoked(serialHex(r.dsc)) {
		e.fail(r, model.StepCrlCheck, phaseCrlCheck, model.PAInvalid, model.CodeCertificateRevoked, "DSC serial number is revoked", map[string]interface{}{
			"serial": serialHex(r.dsc),
		})
		return false
	}
	r.log.completed(model.StepCrlCheck, phaseCrlCheck, nil)
	return true
}

// finalize freezes the invocation and persists it atomically with its
// audit log
func (e *Engine) finalize(ctx context.Context, r *run, started time.Time) (*model.PAInvocation, error) {
	if r.inv.OverallStatus == model.PAValid && r.inv.InvalidDataGroups > 0 {
		r.inv.OverallStatus = model.PAInvalid
	}
	r.log.completed(model.StepVerificationCompleted, phaseCompleted, map[string]interface{}{
		"status": string(r.inv.OverallStatus),
	})
	r.inv.CompletedAt = time.Now().UTC()
	r.inv.DurationMs = time.Since(started).Milliseconds()
	r.inv.AuditLog = r.log.entries

	metrics.IncrCounter([]string{"pa", "invocations"}, 1,
		metrics.Tag{Name: "status", Value: string(r.inv.OverallStatus)})
	logger.KV(xlog.INFO, "api", "AuthenticatePassport",
		"id", r.inv.ID.String(),
		"status", string(r.inv.OverallStatus),
		"dgs", r.inv.TotalDataGroups,
		"invalid", r.inv.InvalidDataGroups,
		"ms", r.inv.DurationMs)

	if err := e.invocations.Save(ctx, r.inv); err != nil {
		return r.inv, errors.Annotate(err, "unable to persist invocation")
	}
	return r.inv, nil
}

func serialHex(cert *x509.Certificate) string {
	return hex.EncodeToString(cert.SerialNumber.Bytes())
}
