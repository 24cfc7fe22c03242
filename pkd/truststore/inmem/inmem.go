// Package inmem is the reference trust-store implementation backed by
// process memory. It honors the same contracts a database-backed
// implementation must: fingerprint uniqueness, bulk existence checks,
// and deterministic conflict reporting. The pkdctl tooling and the
// package tests run against it.
package inmem

import (
	"context"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "inmem")

// Provider implements every truststore repository contract
type Provider struct {
	lock sync.RWMutex

	certs   map[string]*model.Certificate // by fingerprint
	dnIndex *iradix.Tree                  // subjectDN -> fingerprint
	crls    map[string]*model.CRL         // by issuerCN+"/"+country
	audit   map[string][]uuid.UUID        // fingerprint -> uploads
	uploads map[uuid.UUID]int             // audit pair count per upload
	invocs  map[uuid.UUID]*model.PAInvocation

	faultLock sync.Mutex
	failNext  error // injected fault for tests
}

// NewProvider creates an empty in-memory trust store
func NewProvider() *Provider {
	return &Provider{
		certs:   map[string]*model.Certificate{},
		dnIndex: iradix.New(),
		crls:    map[string]*model.CRL{},
		audit:   map[string][]uuid.UUID{},
		uploads: map[uuid.UUID]int{},
		invocs:  map[uuid.UUID]*model.PAInvocation{},
	}
}

// FailNext injects one repository fault, for infrastructure-error tests
func (p *Provider) FailNext(err error) {
	p.faultLock.Lock()
	defer p.faultLock.Unlock()
	p.failNext = err
}

func (p *Provider) takeFault() error {
	p.faultLock.Lock()
	defer p.faultLock.Unlock()
	err := p.failNext
	p.failNext = nil
	return err
}

// FindExistingFingerprints returns the stored subset of fingerprints
func (p *Provider) FindExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if err := p.takeFault(); err != nil {
		return nil, errors.Trace(err)
	}
	existing := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		if _, ok := p.certs[fp]; ok {
			existing[fp] = true
		}
	}
	return existing, nil
}

// Save persists one certificate
func (p *Provider) Save(ctx context.Context, cert *model.Certificate) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.takeFault(); err != nil {
		return errors.Trace(err)
	}
	return p.saveLocked(cert)
}

func (p *Provider) saveLocked(cert *model.Certificate) error {
	if _, ok := p.certs[cert.Fingerprint]; ok {
		return truststore.ErrAlreadyExists
	}
	p.certs[cert.Fingerprint] = cert
	p.dnIndex, _, _ = p.dnIndex.Insert([]byte(cert.SubjectDN), cert.Fingerprint)
	return nil
}

// SaveAll persists a batch; a conflict fails the batch
func (p *Provider) SaveAll(ctx context.Context, certs []*model.Certificate) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.takeFault(); err != nil {
		return errors.Trace(err)
	}
	for _, cert := range certs {
		if _, ok := p.certs[cert.Fingerprint]; ok {
			return truststore.ErrAlreadyExists
		}
	}
	for _, cert := range certs {
		if err := p.saveLocked(cert); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// FindByFingerprint returns the certificate, or ErrNotFound
func (p *Provider) FindByFingerprint(ctx context.Context, fingerprint string) (*model.Certificate, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	cert, ok := p.certs[fingerprint]
	if !ok {
		return nil, truststore.ErrNotFound
	}
	return cert, nil
}

// FindBySubjectDN returns the certificate with the subject DN
func (p *Provider) FindBySubjectDN(ctx context.Context, subjectDN string) (*model.Certificate, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if err := p.takeFault(); err != nil {
		return nil, errors.Trace(err)
	}
	v, ok := p.dnIndex.Get([]byte(subjectDN))
	if !ok {
		return nil, truststore.ErrNotFound
	}
	return p.certs[v.(string)], nil
}

// FindByUploadID returns the certificates created by the upload
func (p *Provider) FindByUploadID(ctx context.Context, uploadID uuid.UUID) ([]*model.Certificate, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	var out []*model.Certificate
	for _, cert := range p.certs {
		if cert.UploadID == uploadID {
			out = append(out, cert)
		}
	}
	return out, nil
}

// FindByTypeAndStatuses returns certificates matching type and status
func (p *Provider) FindByTypeAndStatuses(ctx context.Context, ct model.CertType, statuses []model.Status) ([]*model.Certificate, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if err := p.takeFault(); err != nil {
		return nil, errors.Trace(err)
	}
	var out []*model.Certificate
	for _, cert := range p.certs {
		if cert.Type != ct {
			continue
		}
		for _, s := range statuses {
			if cert.Status == s {
				out = append(out, cert)
				break
			}
		}
	}
	return out, nil
}

// UpdateValidation replaces status and validation result
func (p *Provider) UpdateValidation(ctx context.Context, fingerprint string, status model.Status, result model.ValidationResult, errs []model.ValidationError) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	cert, ok := p.certs[fingerprint]
	if !ok {
		return truststore.ErrNotFound
	}
	cert.Status = status
	cert.Result = result
	cert.Errors = errs
	return nil
}

// CountByCountryAndType returns the per-country census
func (p *Provider) CountByCountryAndType(ctx context.Context) ([]truststore.CountrySummary, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	counts := map[string]map[model.CertType]int{}
	for _, cert := range p.certs {
		cc := cert.Subject.CountryCode
		if counts[cc] == nil {
			counts[cc] = map[model.CertType]int{}
		}
		counts[cc][cert.Type]++
	}
	var out []truststore.CountrySummary
	for cc, byType := range counts {
		for ct, n := range byType {
			out = append(out, truststore.CountrySummary{CountryCode: cc, CertType: ct, Count: n})
		}
	}
	return out, nil
}

func crlKey(issuerCN, countryCode string) string {
	return issuerCN + "/" + countryCode
}

// SaveCRL persists one CRL, replacing any previous CRL for the issuer
func (p *Provider) SaveCRL(ctx context.Context, crl *model.CRL) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.takeFault(); err != nil {
		return errors.Trace(err)
	}
	p.crls[crlKey(crl.IssuerCN, crl.CountryCode)] = crl
	return nil
}

// SaveAllCRLs persists a batch of CRLs
func (p *Provider) SaveAllCRLs(ctx context.Context, crls []*model.CRL) error {
	for _, crl := range crls {
		if err := p.SaveCRL(ctx, crl); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// FindCRLByIssuerAndCountry returns the CRL, or ErrNotFound
func (p *Provider) FindCRLByIssuerAndCountry(ctx context.Context, issuerCN, countryCode string) (*model.CRL, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if err := p.takeFault(); err != nil {
		return nil, errors.Trace(err)
	}
	crl, ok := p.crls[crlKey(issuerCN, countryCode)]
	if !ok {
		return nil, truststore.ErrNotFound
	}
	return crl, nil
}

// FindCRLsByUploadID returns the CRLs created by the upload
func (p *Provider) FindCRLsByUploadID(ctx context.Context, uploadID uuid.UUID) ([]*model.CRL, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	var out []*model.CRL
	for _, crl := range p.crls {
		if crl.UploadID == uploadID {
			out = append(out, crl)
		}
	}
	return out, nil
}

// RecordParsed appends one (uploadID, fingerprint) audit pair
func (p *Provider) RecordParsed(ctx context.Context, uploadID uuid.UUID, fingerprint string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.audit[fingerprint] = append(p.audit[fingerprint], uploadID)
	p.uploads[uploadID]++
	return nil
}

// FindUploadsByFingerprint returns every upload carrying the fingerprint
func (p *Provider) FindUploadsByFingerprint(ctx context.Context, fingerprint string) ([]uuid.UUID, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return append([]uuid.UUID{}, p.audit[fingerprint]...), nil
}

// CountByUploadID returns the number of audit pairs for the upload
func (p *Provider) CountByUploadID(ctx context.Context, uploadID uuid.UUID) (int, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.uploads[uploadID], nil
}

// SaveInvocation persists a completed PA invocation with its audit log
func (p *Provider) SaveInvocation(ctx context.Context, inv *model.PAInvocation) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.invocs[inv.ID] = inv
	return nil
}

// FindInvocationByID returns the invocation, or ErrNotFound
func (p *Provider) FindInvocationByID(ctx context.Context, id uuid.UUID) (*model.PAInvocation, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	inv, ok := p.invocs[id]
	if !ok {
		return nil, truststore.ErrNotFound
	}
	return inv, nil
}

// Certs returns a CertificateRepository view of the provider
func (p *Provider) Certs() truststore.CertificateRepository { return p }

// CRLs returns a CRLRepository view of the provider
func (p *Provider) CRLs() truststore.CRLRepository { return crlView{p} }

// Audit returns an UploadAuditRepository view of the provider
func (p *Provider) Audit() truststore.UploadAuditRepository { return p }

// Invocations returns an InvocationRepository view of the provider
func (p *Provider) Invocations() truststore.InvocationRepository { return invView{p} }

// crlView adapts the CRL methods to the repository contract names
type crlView struct{ p *Provider }

func (v crlView) Save(ctx context.Context, crl *model.CRL) error { return v.p.SaveCRL(ctx, crl) }
func (v crlView) SaveAll(ctx context.Context, crls []*model.CRL) error {
	return v.p.SaveAllCRLs(ctx, crls)
}
func (v crlView) FindByIssuerAndCountry(ctx context.Context, issuerCN, countryCode string) (*model.CRL, error) {
	return v.p.FindCRLByIssuerAndCountry(ctx, issuerCN, countryCode)
}
func (v crlView) FindByUploadID(ctx context.Context, uploadID uuid.UUID) ([]*model.CRL, error) {
	return v.p.FindCRLsByUploadID(ctx, uploadID)
}

type invView struct{ p *Provider }

func (v invView) Save(ctx context.Context, inv *model.PAInvocation) error {
	return v.p.SaveInvocation(ctx, inv)
}
func (v invView) FindByID(ctx context.Context, id uuid.UUID) (*model.PAInvocation, error) {
	return v.p.FindInvocationByID(ctx, id)
}
