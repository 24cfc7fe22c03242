package certutil

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"

	"github.com/cloudflare/cfssl/helpers"
	"github.com/juju/errors"
)

// LoadFromPEM returns the certificate loaded from the file
func LoadFromPEM(certFile string) (*x509.Certificate, error) {
	b, err := ioutil.ReadFile(certFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cert, err := ParseFromPEM(b)
	if err != nil {
		return nil, errors.Annotatef(err, "file %q", certFile)
	}
	return cert, nil
}

// ParseFromPEM returns the certificate parsed from a PEM block
func ParseFromPEM(b []byte) (*x509.Certificate, error) {
	cert, err := helpers.ParseCertificatePEM(b)
	if err != nil {
		return nil, errors.Annotate(err, "unable to parse certificate")
	}
	return cert, nil
}

// ParseChainFromPEM returns the certificates parsed from a PEM bundle
func ParseChainFromPEM(b []byte) ([]*x509.Certificate, error) {
	certs, err := helpers.ParseCertificatesPEM(b)
	if err != nil {
		return nil, errors.Annotate(err, "unable to parse certificates")
	}
	return certs, nil
}

// LoadChainFromPEM returns the certificates loaded from the file
func LoadChainFromPEM(certFile string) ([]*x509.Certificate, error) {
	b, err := ioutil.ReadFile(certFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	certs, err := ParseChainFromPEM(b)
	if err != nil {
		return nil, errors.Annotatef(err, "file %q", certFile)
	}
	return certs, nil
}

// EncodeToPEM converts a certificate to a PEM block
func EncodeToPEM(cert *x509.Certificate) []byte {
	buf := new(bytes.Buffer)
	_ = pem.Encode(buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	return buf.Bytes()
}
