package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"

	"github.com/go-phorce/pkd/xpki/oid"
	"github.com/juju/errors"
)

// rfc4055 RSASSA-PSS-params
type pssParameters struct {
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength   int                      `asn1:"explicit,tag:2,optional"`
	TrailerField int                      `asn1:"explicit,tag:3,optional,default:1"`
}

// SignerCertificate locates the certificate matching the signer's
// issuer-and-serial in the embedded certificate set
func (sd *SignedData) SignerCertificate(signer SignerInfo) *x509.Certificate {
	for _, cert := range sd.Certificates {
		if cert.SerialNumber.Cmp(signer.IssuerAndSerialNumber.SerialNumber) == 0 &&
			bytes.Equal(cert.RawIssuer, signer.IssuerAndSerialNumber.IssuerName.FullBytes) {
			return cert
		}
	}
	return nil
}

// VerifySigner verifies the signer's signature over the encapsulated
// content using the given certificate's public key. Supports RSA
// PKCS#1 v1.5, RSA-PSS and ECDSA with SHA-1/224/256/384/512.
func (sd *SignedData) VerifySigner(signer SignerInfo, cert *x509.Certificate) error {
	if cert == nil {
		return errors.New("signer certificate not provided")
	}

	digestInfo, err := oid.HashAlgorithmByOID(signer.DigestAlgorithm.Algorithm)
	if err != nil {
		return errors.Trace(err)
	}
	contentDigest := digest(digestInfo.HashFunc(), sd.Content)

	signedInput := sd.Content
	if len(signer.AuthenticatedAttributes) > 0 {
		var messageDigest []byte
		if err = FindAttribute(signer.AuthenticatedAttributes, oid.AttributeMessageDigest, &messageDigest); err != nil {
			return errors.Annotate(err, "messageDigest attribute")
		}
		if !bytes.Equal(messageDigest, contentDigest) {
			return errors.New("messageDigest attribute does not match content")
		}
		if signedInput, err = marshalAttributes(signer.AuthenticatedAttributes); err != nil {
			return errors.Trace(err)
		}
	}

	return verifySignature(cert.PublicKey, signer, digestInfo.HashFunc(), signedInput)
}

func verifySignature(pub interface{}, signer SignerInfo, digestHash crypto.Hash, signedInput []byte) error {
	sigAlg := signer.DigestEncryptionAlgorithm.Algorithm
	sig := signer.EncryptedDigest

	switch {
	case sigAlg.Equal(oid.SignatureAlgorithmRSAPSS):
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.New("RSA-PSS signature with non-RSA key")
		}
		h, saltLen, err := parsePSSParameters(signer.DigestEncryptionAlgorithm)
		if err != nil {
			return errors.Trace(err)
		}
		if err := rsa.VerifyPSS(rsaPub, h, digest(h, signedInput),
			sig, &rsa.PSSOptions{SaltLength: saltLen, Hash: h}); err != nil {
			return errors.Annotate(err, "RSA-PSS verification failed")
		}
		return nil

	case sigAlg.Equal(oid.SignatureAlgorithmRSA),
		sigAlg.Equal(oid.RSAWithSHA1), sigAlg.Equal(oid.RSAWithSHA256),
		sigAlg.Equal(oid.RSAWithSHA384), sigAlg.Equal(oid.RSAWithSHA512):
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.New("RSA signature with non-RSA key")
		}
		h := digestHash
		if !sigAlg.Equal(oid.SignatureAlgorithmRSA) {
			var err error
			if h, err = oid.SignatureHashByOID(sigAlg); err != nil {
				return errors.Trace(err)
			}
		}
		if err := rsa.VerifyPKCS1v15(rsaPub, h, digest(h, signedInput), sig); err != nil {
			return errors.Annotate(err, "RSA verification failed")
		}
		return nil

	case sigAlg.Equal(oid.SignatureAlgorithmECDSA),
		sigAlg.Equal(oid.ECDSAWithSHA1), sigAlg.Equal(oid.ECDSAWithSHA256),
		sigAlg.Equal(oid.ECDSAWithSHA384), sigAlg.Equal(oid.ECDSAWithSHA512):
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errors.New("ECDSA signature with non-EC key")
		}
		h := digestHash
		if !sigAlg.Equal(oid.SignatureAlgorithmECDSA) {
			var err error
			if h, err = oid.SignatureHashByOID(sigAlg); err != nil {
				return errors.Trace(err)
			}
		}
		if !ecdsa.VerifyASN1(ecPub, digest(h, signedInput), sig) {
			return errors.New("ECDSA verification failed")
		}
		return nil
	}

	return errors.Errorf("unsupported signature algorithm: %s", sigAlg.String())
}

func parsePSSParameters(alg pkix.AlgorithmIdentifier) (crypto.Hash, int, error) {
	// defaults per RFC 4055: SHA-1, salt 20
	h := crypto.SHA1
	saltLen := 20
	if len(alg.Parameters.FullBytes) == 0 {
		return h, saltLen, nil
	}
	var params pssParameters
	if _, err := asn1.Unmarshal(alg.Parameters.FullBytes, &params); err != nil {
		return 0, 0, errors.Annotate(err, "unable to parse PSS parameters")
	}
	if len(params.Hash.Algorithm) > 0 {
		info, err := oid.HashAlgorithmByOID(params.Hash.Algorithm)
		if err != nil {
			return 0, 0, errors.Trace(err)
		}
		h = info.HashFunc()
	}
	if params.SaltLength > 0 {
		saltLen = params.SaltLength
	}
	return h, saltLen, nil
}

func digest(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}
