package validator

import (
	"context"
	"time"

	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/juju/errors"
)

// RevalidateResponse summarizes one revalidation sweep
type RevalidateResponse struct {
	Checked int `json:"checked" codec:"checked"`
	Updated int `json:"updated" codec:"updated"`
	Expired int `json:"expired" codec:"expired"`
	Revoked int `json:"revoked" codec:"revoked"`
}

// revalidated statuses are the ones a sweep can move between; INVALID
// is terminal because the underlying signature does not change
var revalidatedStatuses = []model.Status{
	model.StatusValid,
	model.StatusExpired,
	model.StatusNotYetValid,
}

// Revalidate re-runs the validity-window and revocation checks over
// stored certificates, optionally restricted to one country. Only
// Status and ValidationResult change; all other fields are immutable.
func (v *Validator) Revalidate(ctx context.Context, countryCode string) (*RevalidateResponse, error) {
	res := &RevalidateResponse{}
	for _, ct := range []model.CertType{model.CertTypeCSCA, model.CertTypeDSC, model.CertTypeDSCNC} {
		certs, err := v.certs.FindByTypeAndStatuses(ctx, ct, revalidatedStatuses)
		if err != nil {
			return nil, errors.Annotate(err, "unable to load certificates")
		}
		for _, cert := range certs {
			if countryCode != "" && cert.Subject.CountryCode != countryCode {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, errors.Annotatef(err, "%s", model.CodeCancelled)
			}
			if err := v.revalidateOne(ctx, cert, res); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}
	logger.KV(xlog.INFO, "api", "Revalidate",
		"country", countryCode,
		"checked", res.Checked,
		"updated", res.Updated,
		"expired", res.Expired,
		"revoked", res.Revoked)
	return res, nil
}

func (v *Validator) revalidateOne(ctx context.Context, cert *model.Certificate, res *RevalidateResponse) error {
	res.Checked++
	now := time.Now().UTC()

	status := cert.Status
	errs := cert.Errors
	result := cert.Result

	switch {
	case cert.Validity.Contains(now, v.skew):
		status = model.StatusValid
		result.ValidityValid = true
	case now.Before(cert.Validity.NotBefore):
		status = model.StatusNotYetValid
		result.ValidityValid = false
	default:
		status = model.StatusExpired
		result.ValidityValid = false
	}
	if status != cert.Status {
		switch status {
		case model.StatusExpired:
			errs = append(errs, validationError(model.CodeExpired, "certificate expired"))
		case model.StatusNotYetValid:
			errs = append(errs, validationError(model.CodeNotYetValid, "certificate not yet valid"))
		}
	}

	revoked, err := v.isRevoked(ctx, cert)
	if err != nil {
		return errors.Trace(err)
	}
	if revoked {
		status = model.StatusRevoked
		result.NotRevoked = false
		errs = append(errs, validationError(model.CodeCertificateRevoked, "serial number appears in issuer CRL"))
	}

	if status == cert.Status {
		return nil
	}
	result.OverallStatus = status
	result.ValidatedAt = now
	if err := v.certs.UpdateValidation(ctx, cert.Fingerprint, status, result, errs); err != nil {
		return errors.Annotate(err, "unable to update validation")
	}
	res.Updated++
	switch status {
	case model.StatusExpired:
		res.Expired++
	case model.StatusRevoked:
		res.Revoked++
	}
	return nil
}

// isRevoked checks the issuer's stored CRL for the certificate serial
func (v *Validator) isRevoked(ctx context.Context, cert *model.Certificate) (bool, error) {
	crl, err := v.crls.FindByIssuerAndCountry(ctx, cert.Issuer.CommonName, cert.Issuer.CountryCode)
	if err != nil {
		if errors.Cause(err) == truststore.ErrNotFound {
			return false, nil
		}
		return false, errors.Annotate(err, "unable to load CRL")
	}
	return crl.IsRevoked(cert.SerialNumber), nil
}
