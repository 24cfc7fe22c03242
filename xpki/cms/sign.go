package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"sort"
	"time"

	"github.com/go-phorce/pkd/xpki/oid"
	"github.com/juju/errors"
)

// Builder assembles a CMS SignedData envelope. It exists for the
// pkdctl tooling and the test fixtures; the PKD core itself only
// verifies.
type Builder struct {
	contentType asn1.ObjectIdentifier
	content     []byte
	digestAlg   asn1.ObjectIdentifier
	usePSS      bool
	certs       []*x509.Certificate
	signers     []SignerInfo
}

// NewBuilder starts a SignedData envelope over the content
func NewBuilder(contentType asn1.ObjectIdentifier, content []byte) *Builder {
	return &Builder{
		contentType: contentType,
		content:     content,
		digestAlg:   oid.DigestAlgorithmSHA256,
	}
}

// WithDigestAlgorithm overrides the default SHA-256 digest
func (b *Builder) WithDigestAlgorithm(alg asn1.ObjectIdentifier) *Builder {
	b.digestAlg = alg
	return b
}

// WithPSS signs RSA signers with RSA-PSS instead of PKCS#1 v1.5
func (b *Builder) WithPSS() *Builder {
	b.usePSS = true
	return b
}

// AddCertificate embeds a certificate without signing
func (b *Builder) AddCertificate(cert *x509.Certificate) *Builder {
	b.certs = append(b.certs, cert)
	return b
}

// AddSigner signs the content with the key and embeds the certificate
func (b *Builder) AddSigner(cert *x509.Certificate, key crypto.Signer) error {
	digestInfo, err := oid.HashAlgorithmByOID(b.digestAlg)
	if err != nil {
		return errors.Trace(err)
	}
	h := digestInfo.HashFunc()

	attrs := []Attribute{}
	attrs, err = addAttribute(attrs, oid.AttributeContentType, b.contentType)
	if err != nil {
		return errors.Trace(err)
	}
	attrs, err = addAttribute(attrs, oid.AttributeSigningTime, time.Now().UTC())
	if err != nil {
		return errors.Trace(err)
	}
	attrs, err = addAttribute(attrs, oid.AttributeMessageDigest, digest(h, b.content))
	if err != nil {
		return errors.Trace(err)
	}
	sortAttributes(attrs)

	signedInput, err := marshalAttributes(attrs)
	if err != nil {
		return errors.Trace(err)
	}

	var (
		sig    []byte
		sigAlg pkix.AlgorithmIdentifier
	)
	switch key.Public().(type) {
	case *rsa.PublicKey:
		if b.usePSS {
			opts := &rsa.PSSOptions{SaltLength: h.Size(), Hash: h}
			sig, err = key.Sign(rand.Reader, digest(h, signedInput), opts)
			params, perr := pssParametersDER(b.digestAlg, h.Size())
			if perr != nil {
				return errors.Trace(perr)
			}
			sigAlg = pkix.AlgorithmIdentifier{
				Algorithm:  oid.SignatureAlgorithmRSAPSS,
				Parameters: asn1.RawValue{FullBytes: params},
			}
		} else {
			sig, err = key.Sign(rand.Reader, digest(h, signedInput), h)
			sigAlg = pkix.AlgorithmIdentifier{Algorithm: oid.SignatureAlgorithmRSA}
		}
	case *ecdsa.PublicKey:
		sig, err = key.Sign(rand.Reader, digest(h, signedInput), h)
		sigAlg = pkix.AlgorithmIdentifier{Algorithm: oid.SignatureAlgorithmECDSA}
	default:
		return errors.New("unsupported signing key type")
	}
	if err != nil {
		return errors.Annotate(err, "signing failed")
	}

	b.certs = append(b.certs, cert)
	b.signers = append(b.signers, SignerInfo{
		Version: 1,
		IssuerAndSerialNumber: issuerAndSerial{
			IssuerName:   asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           pkix.AlgorithmIdentifier{Algorithm: b.digestAlg},
		AuthenticatedAttributes:   attrs,
		DigestEncryptionAlgorithm: sigAlg,
		EncryptedDigest:           sig,
	})
	return nil
}

// Finish returns the DER-encoded ContentInfo
func (b *Builder) Finish() ([]byte, error) {
	eContent, err := asn1.Marshal(b.content)
	if err != nil {
		return nil, errors.Trace(err)
	}

	var certRaw []byte
	for _, cert := range b.certs {
		certRaw = append(certRaw, cert.Raw...)
	}
	rawCerts := rawCertificates{}
	if len(certRaw) > 0 {
		val := asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: certRaw}
		if rawCerts.Raw, err = asn1.Marshal(val); err != nil {
			return nil, errors.Trace(err)
		}
	}

	sd := signedData{
		Version: 3,
		DigestAlgorithmIdentifiers: []pkix.AlgorithmIdentifier{
			{Algorithm: b.digestAlg},
		},
		ContentInfo: contentInfo{
			ContentType: b.contentType,
			Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: eContent},
		},
		Certificates: rawCerts,
		SignerInfos:  b.signers,
	}

	inner, err := asn1.Marshal(sd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	outer := contentInfo{
		ContentType: oid.SignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner},
	}
	der, err := asn1.Marshal(outer)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return der, nil
}

func addAttribute(attrs []Attribute, attrType asn1.ObjectIdentifier, value interface{}) ([]Attribute, error) {
	encoded, err := asn1.Marshal(value)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// the value is a SET with one element
	set, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: encoded})
	if err != nil {
		return nil, errors.Trace(err)
	}
	var rv asn1.RawValue
	if _, err = asn1.Unmarshal(set, &rv); err != nil {
		return nil, errors.Trace(err)
	}
	return append(attrs, Attribute{Type: attrType, Value: rv}), nil
}

// sortAttributes orders the SET OF by encoded value, per DER
func sortAttributes(attrs []Attribute) {
	encoded := make([][]byte, len(attrs))
	for i := range attrs {
		encoded[i], _ = asn1.Marshal(attrs[i])
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return string(encoded[i]) < string(encoded[j])
	})
}

func pssParametersDER(hashOID asn1.ObjectIdentifier, saltLen int) ([]byte, error) {
	hashAlg := pkix.AlgorithmIdentifier{
		Algorithm:  hashOID,
		Parameters: asn1.NullRawValue,
	}
	hashDER, err := asn1.Marshal(hashAlg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	mgf := pkix.AlgorithmIdentifier{
		Algorithm:  oid.MGF1,
		Parameters: asn1.RawValue{FullBytes: hashDER},
	}
	params := pssParameters{
		Hash:         hashAlg,
		MGF:          mgf,
		SaltLength:   saltLen,
		TrailerField: 1,
	}
	return asn1.Marshal(params)
}
