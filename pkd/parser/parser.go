// Package parser decodes uploaded PKD files into ParsedFile
// aggregates. Two sub-parsers cover the formats in the wild: an RFC
// 2849 LDIF reader and a CMS Master List reader. The parser extracts
// and fingerprints; it never validates signatures, except the optional
// Master List trust-anchor check which degrades to a warning.
package parser

import (
	"context"
	"crypto/x509"
	"strings"

	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/truststore"
	"github.com/go-phorce/pkd/xlog"
	"github.com/go-phorce/pkd/xpki/certutil"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "parser")

// Parser decodes uploads into ParsedFile aggregates
type Parser struct {
	certs   truststore.CertificateRepository
	anchors []*x509.Certificate
}

// New returns a Parser. When cfg.MasterListTrustAnchor names a PEM
// bundle, master list CMS signatures are checked against it.
func New(certs truststore.CertificateRepository, cfg *config.Config) (*Parser, error) {
	p := &Parser{certs: certs}
	if cfg != nil && cfg.MasterListTrustAnchor != "" {
		anchors, err := certutil.LoadChainFromPEM(cfg.MasterListTrustAnchor)
		if err != nil {
			return nil, errors.Annotate(err, "unable to load master list trust anchor")
		}
		p.anchors = anchors
	}
	return p, nil
}

// certCandidate is one certificate found during the first pass,
// before the batch duplicate check
type certCandidate struct {
	cert     *x509.Certificate
	certType model.CertType
	locator  string
}

// Parse decodes the uploaded bytes per the declared format. Individual
// malformed entries attach ParsingErrors and the parse continues;
// unreadable framing fails the whole parse.
func (p *Parser) Parse(ctx context.Context, data []byte, format model.FileFormat, uploadID uuid.UUID) (*model.ParsedFile, error) {
	pf := model.NewParsedFile(uploadID, format)

	var cands []certCandidate
	var err error
	switch {
	case format.IsLdif():
		cands, err = p.parseLdif(pf, data, format)
	case format == model.MasterListSignedCms:
		cands, err = p.parseMasterList(pf, data, "master-list")
	default:
		return nil, errors.Errorf("%s: unsupported file format", model.CodeInvalidFileFormat)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	if err := p.resolveDuplicates(ctx, pf, cands); err != nil {
		return nil, errors.Trace(err)
	}

	pf.ProcessedEntries = pf.TotalEntries
	logger.KV(xlog.INFO, "api", "Parse",
		"upload", uploadID.String(),
		"format", format.String(),
		"certs", len(pf.Certificates),
		"crls", len(pf.CRLs),
		"duplicates", pf.DuplicateCount,
		"errors", len(pf.Errors))
	return pf, nil
}

// resolveDuplicates runs the batch duplicate-check protocol: dedup
// within the file, one bulk existence query, then per-entry decisions
// against the in-memory set. No per-certificate store lookups.
func (p *Parser) resolveDuplicates(ctx context.Context, pf *model.ParsedFile, cands []certCandidate) error {
	type fingerprinted struct {
		certCandidate
		fingerprint string
	}

	var unique []fingerprinted
	for _, c := range cands {
		fp := certutil.Fingerprint(c.cert.Raw)
		if pf.Seen(fp) {
			pf.DuplicateCount++
			pf.AddError(model.CodeDuplicateCertificate, c.locator, "certificate repeated within upload")
			continue
		}
		unique = append(unique, fingerprinted{certCandidate: c, fingerprint: fp})
	}

	fps := make([]string, len(unique))
	for i, c := range unique {
		fps[i] = c.fingerprint
	}
	existing := map[string]bool{}
	if len(fps) > 0 {
		var err error
		existing, err = p.certs.FindExistingFingerprints(ctx, fps)
		if err != nil {
			return errors.Annotate(err, "duplicate check failed")
		}
	}

	for _, c := range unique {
		cd := certificateData(c.cert, c.certType, c.fingerprint)
		if existing[c.fingerprint] {
			cd.AlreadyStored = true
			pf.DuplicateCount++
			pf.AddError(model.CodeDuplicateCertificate, c.locator, "certificate already in trust store")
		}
		pf.Certificates = append(pf.Certificates, cd)
	}
	return nil
}

// parseLdif reads every record, emitting certificate candidates, CRL
// data and recursing into embedded master lists
func (p *Parser) parseLdif(pf *model.ParsedFile, data []byte, format model.FileFormat) ([]certCandidate, error) {
	entries, err := parseLdifEntries(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", model.CodeMalformedLdif)
	}
	pf.TotalEntries = len(entries)

	var cands []certCandidate
	for _, entry := range entries {
		if der := entry.Value("userCertificate"); der != nil {
			cert, cerr := x509.ParseCertificate(der)
			if cerr != nil {
				pf.AddError(model.CodeCertParseError, entry.DN, "unable to parse certificate")
				continue
			}
			cands = append(cands, certCandidate{
				cert:     cert,
				certType: inferCertType(entry, format, cert),
				locator:  entry.DN,
			})
		}
		if der := entry.Value("certificateRevocationList"); der != nil {
			crl, cerr := crlData(der)
			if cerr != nil {
				pf.AddError(model.CodeCrlParseError, entry.DN, "unable to parse CRL")
				continue
			}
			pf.CRLs = append(pf.CRLs, crl)
		}
		if ml := entry.Value("pkdMasterListContent"); ml != nil {
			mlCands, merr := p.parseMasterList(pf, ml, entry.DN)
			if merr != nil {
				pf.AddError(model.CodeMasterListCmsParseError, entry.DN, "unable to parse embedded master list")
				continue
			}
			cands = append(cands, mlCands...)
		}
	}
	return cands, nil
}

// inferCertType classifies the certificate from the LDIF entry DN, the
// non-conformance markers, and finally the certificate shape itself
func inferCertType(entry *ldifEntry, format model.FileFormat, cert *x509.Certificate) model.CertType {
	if format == model.DscNonConformingLdif || entry.Has("pkdConformanceText") {
		return model.CertTypeDSCNC
	}
	dn := strings.ToLower(entry.DN)
	if strings.Contains(dn, "o=csca") {
		return model.CertTypeCSCA
	}
	if strings.Contains(dn, "o=dsc") {
		return model.CertTypeDSC
	}
	if cert.IsCA && string(cert.RawSubject) == string(cert.RawIssuer) {
		return model.CertTypeCSCA
	}
	if !cert.IsCA {
		return model.CertTypeDSC
	}
	return model.CertTypeUnknown
}
