// Package publisher maps validated trust-store artifacts to directory
// entries under deterministic DNs and upserts them over LDAP. Every
// artifact is published regardless of status so that auditors can
// query the directory for INVALID and EXPIRED entries through the
// description attribute.
package publisher

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "publisher")

var (
	certObjectClasses = []string{"top", "person", "organizationalPerson", "inetOrgPerson", "pkiUser"}
	crlObjectClasses  = []string{"top", "cRLDistributionPoint"}
)

// Response summarizes one publication run
type Response struct {
	UploadID uuid.UUID `json:"upload_id" codec:"upload_id"`

	Uploaded int `json:"uploaded" codec:"uploaded"`
	Skipped  int `json:"skipped" codec:"skipped"`
	Failed   int `json:"failed" codec:"failed"`

	FailedDNs []string `json:"failed_dns,omitempty" codec:"failed_dns"`
}

// Publisher publishes validated artifacts of one upload
type Publisher struct {
	certs truststore.CertificateRepository
	crls  truststore.CRLRepository
	dir   Directory

	baseDN    string
	batchSize int
}

// New returns a Publisher writing to the given directory
func New(certs truststore.CertificateRepository, crls truststore.CRLRepository, dir Directory, cfg *config.Config) *Publisher {
	return &Publisher{
		certs:     certs,
		crls:      crls,
		dir:       dir,
		baseDN:    cfg.Directory.BaseDN,
		batchSize: cfg.Directory.GetBatchSize(),
	}
}

// Publish upserts every certificate and CRL of the upload. Per-entry
// directory failures are recorded and do not abort the run; only a
// repository fault or cancellation does.
func (p *Publisher) Publish(ctx context.Context, uploadID uuid.UUID) (*Response, error) {
	started := time.Now()
	defer metrics.MeasureSince([]string{"publisher", "publish"}, started)

	certs, err := p.certs.FindByUploadID(ctx, uploadID)
	if err != nil {
		return nil, errors.Annotate(err, "unable to load certificates")
	}
	crls, err := p.crls.FindByUploadID(ctx, uploadID)
	if err != nil {
		return nil, errors.Annotate(err, "unable to load CRLs")
	}

	reqs := make([]*ldap.AddRequest, 0, len(certs)+len(crls))
	for _, cert := range certs {
		reqs = append(reqs, p.certRequest(cert))
	}
	for _, crl := range crls {
		reqs = append(reqs, p.crlRequest(crl))
	}

	res := &Response{UploadID: uploadID}
	for len(reqs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Annotatef(err, "%s", model.CodeCancelled)
		}
		n := p.batchSize
		if n > len(reqs) {
			n = len(reqs)
		}
		p.publishBatch(reqs[:n], res)
		reqs = reqs[n:]
	}

	logger.KV(xlog.INFO, "api", "Publish",
		"upload", uploadID.String(),
		"uploaded", res.Uploaded,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

// publishBatch issues the adds one by one; an already-exists result is
// idempotent success, anything else is recorded against the DN
func (p *Publisher) publishBatch(reqs []*ldap.AddRequest, res *Response) {
	for _, req := range reqs {
		err := p.dir.Add(req)
		switch {
		case err == nil:
			res.Uploaded++
			metrics.IncrCounter([]string{"publisher", "entries"}, 1, metrics.Tag{Name: "outcome", Value: "uploaded"})
		case ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists):
			res.Skipped++
			metrics.IncrCounter([]string{"publisher", "entries"}, 1, metrics.Tag{Name: "outcome", Value: "skipped"})
		default:
			res.Failed++
			res.FailedDNs = append(res.FailedDNs, req.DN)
			metrics.IncrCounter([]string{"publisher", "entries"}, 1, metrics.Tag{Name: "outcome", Value: "failed"})
			logger.KV(xlog.ERROR, "api", "publishBatch", "dn", req.DN, "err", err.Error())
		}
	}
}

// CertificateDN composes the deterministic DN of a certificate entry:
// cn=<escaped subject DN>+sn=<serial-hex>,o=<csca|dsc>,c=<CC>,<base>
func (p *Publisher) CertificateDN(cert *model.Certificate) string {
	org := "dsc"
	if cert.Type == model.CertTypeCSCA {
		org = "csca"
	}
	return "cn=" + escapeDN(cert.SubjectDN) +
		"+sn=" + cert.SerialNumber +
		",o=" + org +
		",c=" + cert.Subject.CountryCode +
		"," + p.baseDN
}

// CRLDN composes the deterministic DN of a CRL entry:
// cn=<escaped issuer DN>,o=crl,c=<CC>,<base>
func (p *Publisher) CRLDN(crl *model.CRL) string {
	return "cn=" + escapeDN(crl.IssuerDN) +
		",o=crl" +
		",c=" + crl.CountryCode +
		"," + p.baseDN
}

func (p *Publisher) certRequest(cert *model.Certificate) *ldap.AddRequest {
	req := ldap.NewAddRequest(p.CertificateDN(cert), nil)
	req.Attribute("objectClass", certObjectClasses)
	req.Attribute("cn", []string{cert.SubjectDN})
	req.Attribute("sn", []string{cert.SerialNumber})
	req.Attribute("description", []string{cert.StatusDescription()})
	req.Attribute("userCertificate;binary", []string{string(cert.Raw)})
	return req
}

func (p *Publisher) crlRequest(crl *model.CRL) *ldap.AddRequest {
	req := ldap.NewAddRequest(p.CRLDN(crl), nil)
	req.Attribute("objectClass", crlObjectClasses)
	req.Attribute("cn", []string{crl.IssuerDN})
	req.Attribute("description", []string{crl.StatusDescription()})
	req.Attribute("certificateRevocationList;binary", []string{string(crl.Raw)})
	return req
}
