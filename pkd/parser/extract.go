package parser

import (
	"crypto/x509"
	"encoding/hex"

	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/xpki/certutil"
	"github.com/juju/errors"
)

// certificateData projects a parsed X.509 certificate into the
// transient parser output consumed by the validator
func certificateData(cert *x509.Certificate, ct model.CertType, fingerprint string) model.CertificateData {
	return model.CertificateData{
		Raw:         cert.Raw,
		Fingerprint: fingerprint,
		SubjectDN:   certutil.NameToString(cert.Subject),
		IssuerDN:    certutil.NameToString(cert.Issuer),
		Subject: model.SubjectInfo{
			CountryCode:  certutil.CountryOf(cert.Subject),
			Organization: certutil.FirstOf(cert.Subject.Organization),
			OrgUnit:      certutil.FirstOf(cert.Subject.OrganizationalUnit),
			CommonName:   cert.Subject.CommonName,
		},
		Issuer: model.IssuerInfo{
			CountryCode:  certutil.CountryOf(cert.Issuer),
			Organization: certutil.FirstOf(cert.Issuer.Organization),
			OrgUnit:      certutil.FirstOf(cert.Issuer.OrganizationalUnit),
			CommonName:   cert.Issuer.CommonName,
			IsCA:         cert.IsCA,
		},
		SerialNumber: serialHex(cert),
		Validity: model.ValidityPeriod{
			NotBefore: cert.NotBefore.UTC(),
			NotAfter:  cert.NotAfter.UTC(),
		},
		Type:        ct,
		CountryCode: certutil.CountryOf(cert.Subject),
		PublicKey:   cert.PublicKey,
	}
}

// crlData projects a DER-encoded CRL into the transient parser output
func crlData(der []byte) (model.CRLData, error) {
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return model.CRLData{}, errors.Annotate(err, "unable to parse CRL")
	}

	issuerDN := certutil.NameToString(crl.Issuer)
	data := model.CRLData{
		Raw:          der,
		IssuerDN:     issuerDN,
		IssuerCN:     certutil.NormalizedCN(issuerDN),
		CountryCode:  certutil.CountryOf(crl.Issuer),
		ThisUpdate:   crl.ThisUpdate.UTC(),
		NextUpdate:   crl.NextUpdate.UTC(),
		RevokedCount: len(crl.RevokedCertificates),
	}
	for _, r := range crl.RevokedCertificates {
		data.Revoked = append(data.Revoked, model.RevokedEntry{
			SerialNumber:   hex.EncodeToString(r.SerialNumber.Bytes()),
			RevocationDate: r.RevocationTime.UTC(),
		})
	}
	return data, nil
}

func serialHex(cert *x509.Certificate) string {
	return hex.EncodeToString(cert.SerialNumber.Bytes())
}
