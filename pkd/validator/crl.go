package validator

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/go-phorce/pkd/metrics/util"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/xlog"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// validateCRLs builds CRL entities from the parsed data, checks the
// freshness window and the issuer signature, and saves the batch.
// Returns the number of CRLs saved.
func (v *Validator) validateCRLs(ctx context.Context, pf *model.ParsedFile, cache *cscaCache) (int, error) {
	if len(pf.CRLs) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Annotatef(err, "%s", model.CodeCancelled)
	}

	now := time.Now().UTC()
	batch := make([]*model.CRL, 0, len(pf.CRLs))
	for i := range pf.CRLs {
		cd := &pf.CRLs[i]
		crl := &model.CRL{
			ID:           uuid.New(),
			UploadID:     pf.UploadID,
			IssuerCN:     cd.IssuerCN,
			IssuerDN:     cd.IssuerDN,
			CountryCode:  cd.CountryCode,
			Validity:     model.ValidityPeriod{NotBefore: cd.ThisUpdate, NotAfter: cd.NextUpdate},
			Raw:          cd.Raw,
			RevokedCount: cd.RevokedCount,
			Revoked:      cd.Revoked,
			Status:       model.StatusValid,
		}

		if !crl.Validity.Contains(now, v.skew) {
			crl.Errors = append(crl.Errors, warning(model.CodeCrlStale, "CRL outside thisUpdate..nextUpdate window"))
		}

		parsed, err := x509.ParseRevocationList(cd.Raw)
		if err != nil {
			crl.Status = model.StatusInvalid
			crl.Errors = append(crl.Errors, validationError(model.CodeCrlParseError, "unable to re-parse CRL"))
		} else if issuer := v.crlIssuer(cd, cache); issuer == nil {
			// the issuing CSCA may arrive in a later upload; the CRL
			// stays usable for PA but the chain is not proven
			crl.Errors = append(crl.Errors, warning(model.CodeChainIncomplete, "CRL issuer not in trust store"))
		} else if err := parsed.CheckSignatureFrom(issuer.parsed); err != nil {
			crl.Status = model.StatusInvalid
			crl.Errors = append(crl.Errors, validationError(model.CodeCrlSignatureInvalid, "CRL signature verification failed"))
		} else {
			util.PublishCRLExpirationInDays(parsed, crl.IssuerCN)
		}

		batch = append(batch, crl)
	}

	if err := v.crls.SaveAll(ctx, batch); err != nil {
		return 0, errors.Annotate(err, "unable to save CRLs")
	}
	logger.KV(xlog.INFO, "api", "validateCRLs", "upload", pf.UploadID.String(), "count", len(batch))
	return len(batch), nil
}

// crlIssuer resolves the CRL's issuing CSCA, by full DN first and by
// bare CN as a fallback for DN-encoding mismatches
func (v *Validator) crlIssuer(cd *model.CRLData, cache *cscaCache) *cachedCSCA {
	if c := cache.find(cd.IssuerDN); c != nil {
		return c
	}
	return cache.findByCN(cd.IssuerCN)
}
