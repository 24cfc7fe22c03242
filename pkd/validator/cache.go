package validator

import (
	"context"
	"crypto/x509"

	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/metrics/util"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/xlog"
	"github.com/juju/errors"
)

// cachedCSCA pairs the stored entity with its parsed form so that
// signature checks need no re-parse
type cachedCSCA struct {
	cert   *model.Certificate
	parsed *x509.Certificate
}

// cscaCache is the in-memory subject-DN index used by the DSC pass.
// It is built once per Validate call and never mutated afterwards.
type cscaCache struct {
	bySubjectDN map[string]*cachedCSCA
	byCN        map[string]*cachedCSCA
	bytes       int
}

func (c *cscaCache) find(issuerDN string) *cachedCSCA {
	return c.bySubjectDN[issuerDN]
}

// findByCN resolves a CRL issuer by bare CN; used by the CRL pass
func (c *cscaCache) findByCN(cn string) *cachedCSCA {
	return c.byCN[cn]
}

// buildCSCACache loads VALID and EXPIRED CSCAs. Expired roots stay in
// the cache: a DSC signed by a since-expired CSCA still chains.
func (v *Validator) buildCSCACache(ctx context.Context) (*cscaCache, error) {
	cscas, err := v.certs.FindByTypeAndStatuses(ctx, model.CertTypeCSCA,
		[]model.Status{model.StatusValid, model.StatusExpired})
	if err != nil {
		return nil, errors.Annotate(err, "unable to load CSCA certificates")
	}

	cache := &cscaCache{
		bySubjectDN: make(map[string]*cachedCSCA, len(cscas)),
		byCN:        make(map[string]*cachedCSCA, len(cscas)),
	}
	for _, cert := range cscas {
		parsed, err := x509.ParseCertificate(cert.Raw)
		if err != nil {
			logger.KV(xlog.WARNING, "api", "buildCSCACache",
				"fingerprint", cert.Fingerprint,
				"err", "unparsable stored certificate")
			continue
		}
		entry := &cachedCSCA{cert: cert, parsed: parsed}
		cache.bySubjectDN[cert.SubjectDN] = entry
		if cn := cert.Subject.CommonName; cn != "" {
			cache.byCN[cn] = entry
		}
		cache.bytes += len(cert.Raw)
		util.PublishCertExpirationInDays(parsed, "CSCA")
	}

	metrics.SetGauge([]string{"validator", "csca", "cache", "bytes"}, float32(cache.bytes))
	if v.cacheMaxBytes > 0 && cache.bytes > v.cacheMaxBytes {
		logger.KV(xlog.WARNING, "api", "buildCSCACache",
			"bytes", cache.bytes,
			"max", v.cacheMaxBytes,
			"reason", "cache_size_exceeded")
	}
	logger.KV(xlog.DEBUG, "api", "buildCSCACache", "count", len(cache.bySubjectDN), "bytes", cache.bytes)
	return cache, nil
}
