// Package oid maps ASN.1 object identifiers of digest and signature
// algorithms to Go crypto primitives. Every algorithm a passport SOD
// may declare is resolved here once, at construction time, so that an
// unsupported OID fails startup rather than mid-verification.
package oid

import (
	"crypto"
	"encoding/asn1"

	"github.com/juju/errors"
)

// Content type OIDs
var (
	Data       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	SignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	// LDSSecurityObject is the ICAO 9303 encapsulated content type
	LDSSecurityObject = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}
	// CscaMasterList is the ICAO 9303 part 12 master list content type
	CscaMasterList = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 2}
)

// Attribute OIDs
var (
	AttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	AttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	AttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// Digest algorithm OIDs
var (
	DigestAlgorithmSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	DigestAlgorithmSHA224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
	DigestAlgorithmSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	DigestAlgorithmSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	DigestAlgorithmSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Signature algorithm OIDs
var (
	SignatureAlgorithmRSA    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	SignatureAlgorithmRSAPSS = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	SignatureAlgorithmECDSA  = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	RSAWithSHA1              = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	RSAWithSHA256            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	RSAWithSHA384            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	RSAWithSHA512            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	ECDSAWithSHA1            = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}
	ECDSAWithSHA256          = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	ECDSAWithSHA384          = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	ECDSAWithSHA512          = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	MGF1                     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// HashAlgorithmInfo provides OID info for hash algorithms
type HashAlgorithmInfo struct {
	name string
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
}

// HashFunc returns the crypto.Hash, satisfying crypto.SignerOpts
func (h HashAlgorithmInfo) HashFunc() crypto.Hash {
	return h.hash
}

// Name is the friendly name of the algorithm: SHA256, etc
func (h HashAlgorithmInfo) Name() string {
	return h.name
}

// OID is the ASN.1 object identifier
func (h HashAlgorithmInfo) OID() asn1.ObjectIdentifier {
	return h.oid
}

// String returns the dot notation of the OID
func (h HashAlgorithmInfo) String() string {
	return h.oid.String()
}

var hashAlgorithms = []HashAlgorithmInfo{
	{name: "SHA1", oid: DigestAlgorithmSHA1, hash: crypto.SHA1},
	{name: "SHA224", oid: DigestAlgorithmSHA224, hash: crypto.SHA224},
	{name: "SHA256", oid: DigestAlgorithmSHA256, hash: crypto.SHA256},
	{name: "SHA384", oid: DigestAlgorithmSHA384, hash: crypto.SHA384},
	{name: "SHA512", oid: DigestAlgorithmSHA512, hash: crypto.SHA512},
}

// HashAlgorithmByOID returns hash info for the OID
func HashAlgorithmByOID(oid asn1.ObjectIdentifier) (*HashAlgorithmInfo, error) {
	for i := range hashAlgorithms {
		if hashAlgorithms[i].oid.Equal(oid) {
			return &hashAlgorithms[i], nil
		}
	}
	return nil, errors.Errorf("unsupported digest algorithm: %s", oid.String())
}

// HashAlgorithmByName returns hash info for the friendly name
func HashAlgorithmByName(name string) (*HashAlgorithmInfo, error) {
	for i := range hashAlgorithms {
		if hashAlgorithms[i].name == name {
			return &hashAlgorithms[i], nil
		}
	}
	return nil, errors.Errorf("unsupported digest algorithm: %q", name)
}

// ResolveAllowList verifies that every named algorithm is supported and
// its hash function is linked into the binary. The PKD core calls this
// at construction so a misconfigured allow-list fails startup.
func ResolveAllowList(names []string) error {
	for _, name := range names {
		info, err := HashAlgorithmByName(name)
		if err != nil {
			return errors.Trace(err)
		}
		if !info.HashFunc().Available() {
			return errors.Errorf("digest algorithm not linked: %s", name)
		}
	}
	return nil
}

// SignatureHashByOID returns the digest used by a signature algorithm
// OID, for signature OIDs that pin their hash (e.g. sha256WithRSA).
// RSA-PSS carries its hash in parameters and is resolved separately.
func SignatureHashByOID(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	switch {
	case oid.Equal(RSAWithSHA1), oid.Equal(ECDSAWithSHA1):
		return crypto.SHA1, nil
	case oid.Equal(RSAWithSHA256), oid.Equal(ECDSAWithSHA256):
		return crypto.SHA256, nil
	case oid.Equal(RSAWithSHA384), oid.Equal(ECDSAWithSHA384):
		return crypto.SHA384, nil
	case oid.Equal(RSAWithSHA512), oid.Equal(ECDSAWithSHA512):
		return crypto.SHA512, nil
	}
	return 0, errors.Errorf("unsupported signature algorithm: %s", oid.String())
}
