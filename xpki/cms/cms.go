// Package cms implements the subset of RFC 5652 Cryptographic Message
// Syntax needed by the PKD: parsing SignedData envelopes (passport SODs
// and CSCA Master Lists), verifying SignerInfo signatures including
// RSA-PSS, and building SignedData for tooling and tests.
package cms

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"

	"github.com/go-phorce/pkd/xlog"
	"github.com/go-phorce/pkd/xpki/oid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "cms")

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

type signedData struct {
	Version                    int                        `asn1:"default:1"`
	DigestAlgorithmIdentifiers []pkix.AlgorithmIdentifier `asn1:"set"`
	ContentInfo                contentInfo
	Certificates               rawCertificates `asn1:"optional,tag:0"`
	CRLs                       []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos                []SignerInfo    `asn1:"set"`
}

type rawCertificates struct {
	Raw asn1.RawContent
}

type issuerAndSerial struct {
	IssuerName   asn1.RawValue
	SerialNumber *big.Int
}

// Attribute is a CMS signed or unsigned attribute
type Attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

// SignerInfo is one CMS signer record
type SignerInfo struct {
	Version                   int
	IssuerAndSerialNumber     issuerAndSerial
	DigestAlgorithm           pkix.AlgorithmIdentifier
	AuthenticatedAttributes   []Attribute `asn1:"optional,omitempty,tag:0"`
	DigestEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedDigest           []byte
	UnauthenticatedAttributes []Attribute `asn1:"optional,omitempty,tag:1"`
}

// SignedData is a parsed CMS SignedData envelope
type SignedData struct {
	// ContentType is the encapsulated content type OID
	ContentType asn1.ObjectIdentifier
	// Content is the encapsulated content (eContent octets)
	Content []byte
	// Certificates is the embedded certificate set, in order
	Certificates []*x509.Certificate
	// Signers are the SignerInfo records
	Signers []SignerInfo

	raw signedData
}

// ParseSignedData parses a DER-encoded ContentInfo wrapping SignedData
func ParseSignedData(der []byte) (*SignedData, error) {
	var info contentInfo
	rest, err := asn1.Unmarshal(der, &info)
	if err != nil {
		return nil, errors.Annotate(err, "unable to parse ContentInfo")
	}
	if len(rest) > 0 {
		logger.KV(xlog.DEBUG, "api", "ParseSignedData", "trailing_bytes", len(rest))
	}
	if !info.ContentType.Equal(oid.SignedData) {
		return nil, errors.Errorf("unexpected content type: %s", info.ContentType.String())
	}

	var sd signedData
	if _, err = asn1.Unmarshal(info.Content.Bytes, &sd); err != nil {
		return nil, errors.Annotate(err, "unable to parse SignedData")
	}

	content, err := encapContent(sd.ContentInfo.Content)
	if err != nil {
		return nil, errors.Trace(err)
	}

	certs, err := parseCertificateSet(sd.Certificates.Raw)
	if err != nil {
		return nil, errors.Trace(err)
	}

	return &SignedData{
		ContentType:  sd.ContentInfo.ContentType,
		Content:      content,
		Certificates: certs,
		Signers:      sd.SignerInfos,
		raw:          sd,
	}, nil
}

// encapContent unwraps the eContent OCTET STRING, tolerating the
// constructed encodings some national producers emit
func encapContent(raw asn1.RawValue) ([]byte, error) {
	if len(raw.Bytes) == 0 {
		return nil, nil
	}
	var compound asn1.RawValue
	if _, err := asn1.Unmarshal(raw.Bytes, &compound); err != nil {
		return nil, errors.Annotate(err, "unable to parse encapsulated content")
	}
	if compound.Tag != asn1.TagOctetString || compound.Class != asn1.ClassUniversal {
		// some producers omit the OCTET STRING wrapper
		return raw.Bytes, nil
	}
	if !compound.IsCompound {
		return compound.Bytes, nil
	}
	// constructed OCTET STRING: concatenate the segments
	var content []byte
	b := compound.Bytes
	for len(b) > 0 {
		var seg asn1.RawValue
		rest, err := asn1.Unmarshal(b, &seg)
		if err != nil {
			return nil, errors.Annotate(err, "unable to parse content segment")
		}
		content = append(content, seg.Bytes...)
		b = rest
	}
	return content, nil
}

// parseCertificateSet walks the [0] IMPLICIT CertificateSet. Elements
// that do not decode as X.509 certificates are skipped silently; Master
// Lists in the wild carry attribute certificates and stray values.
func parseCertificateSet(raw asn1.RawContent) ([]*x509.Certificate, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wrapper asn1.RawValue
	if _, err := asn1.Unmarshal(raw, &wrapper); err != nil {
		return nil, errors.Annotate(err, "unable to parse certificate set")
	}
	var certs []*x509.Certificate
	b := wrapper.Bytes
	for len(b) > 0 {
		var el asn1.RawValue
		rest, err := asn1.Unmarshal(b, &el)
		if err != nil {
			return nil, errors.Annotate(err, "malformed certificate set element")
		}
		b = rest
		if el.Class != asn1.ClassUniversal || el.Tag != asn1.TagSequence {
			continue
		}
		cert, err := x509.ParseCertificate(el.FullBytes)
		if err != nil {
			logger.KV(xlog.DEBUG, "api", "parseCertificateSet", "skipped", err.Error())
			continue
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// FindAttribute returns the value of the attribute with the given type
func FindAttribute(attrs []Attribute, attrType asn1.ObjectIdentifier, out interface{}) error {
	for _, attr := range attrs {
		if attr.Type.Equal(attrType) {
			_, err := asn1.Unmarshal(attr.Value.Bytes, out)
			return errors.Trace(err)
		}
	}
	return errors.Errorf("attribute not found: %s", attrType.String())
}

// marshalAttributes encodes signed attributes for signature input:
// the [0] IMPLICIT tag is replaced by SET OF per RFC 5652 §5.4
func marshalAttributes(attrs []Attribute) ([]byte, error) {
	encoded, err := asn1.Marshal(struct {
		A []Attribute `asn1:"set"`
	}{A: attrs})
	if err != nil {
		return nil, errors.Trace(err)
	}
	var raw asn1.RawValue
	if _, err = asn1.Unmarshal(encoded, &raw); err != nil {
		return nil, errors.Trace(err)
	}
	return raw.Bytes, nil
}
