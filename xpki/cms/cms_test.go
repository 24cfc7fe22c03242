package cms

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/go-phorce/pkd/xpki/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaSigner(t *testing.T, cn string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	templ := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn, Country: []string{"UT"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, templ, templ, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func ecdsaSigner(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	templ := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn, Country: []string{"UT"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, templ, templ, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func TestSignedDataRoundTrip(t *testing.T) {
	cert, key := rsaSigner(t, "cms-rsa")
	content := []byte("encapsulated content")

	b := NewBuilder(oid.Data, content)
	require.NoError(t, b.AddSigner(cert, key))
	der, err := b.Finish()
	require.NoError(t, err)

	sd, err := ParseSignedData(der)
	require.NoError(t, err)
	assert.Equal(t, content, sd.Content)
	require.Len(t, sd.Signers, 1)
	require.Len(t, sd.Certificates, 1)

	signerCert := sd.SignerCertificate(sd.Signers[0])
	require.NotNil(t, signerCert)
	assert.Equal(t, cert.SerialNumber, signerCert.SerialNumber)

	require.NoError(t, sd.VerifySigner(sd.Signers[0], signerCert))
}

func TestSignedDataPSS(t *testing.T) {
	cert, key := rsaSigner(t, "cms-pss")
	content := []byte("pss signed content")

	b := NewBuilder(oid.Data, content).WithPSS()
	require.NoError(t, b.AddSigner(cert, key))
	der, err := b.Finish()
	require.NoError(t, err)

	sd, err := ParseSignedData(der)
	require.NoError(t, err)
	require.NoError(t, sd.VerifySigner(sd.Signers[0], sd.Certificates[0]))
}

func TestSignedDataECDSA(t *testing.T) {
	cert, key := ecdsaSigner(t, "cms-ec")
	content := []byte("ecdsa signed content")

	b := NewBuilder(oid.Data, content)
	require.NoError(t, b.AddSigner(cert, key))
	der, err := b.Finish()
	require.NoError(t, err)

	sd, err := ParseSignedData(der)
	require.NoError(t, err)
	require.NoError(t, sd.VerifySigner(sd.Signers[0], sd.Certificates[0]))
}

func TestVerifySignerTampered(t *testing.T) {
	cert, key := rsaSigner(t, "cms-tamper")
	b := NewBuilder(oid.Data, []byte("original"))
	require.NoError(t, b.AddSigner(cert, key))
	der, err := b.Finish()
	require.NoError(t, err)

	sd, err := ParseSignedData(der)
	require.NoError(t, err)
	sd.Content = []byte("tampered")
	require.Error(t, sd.VerifySigner(sd.Signers[0], sd.Certificates[0]))
}

func TestVerifySignerWrongCert(t *testing.T) {
	cert, key := rsaSigner(t, "cms-signer")
	other, _ := rsaSigner(t, "cms-other")

	b := NewBuilder(oid.Data, []byte("content"))
	require.NoError(t, b.AddSigner(cert, key))
	der, err := b.Finish()
	require.NoError(t, err)

	sd, err := ParseSignedData(der)
	require.NoError(t, err)
	require.Error(t, sd.VerifySigner(sd.Signers[0], other))
}

func TestParseSignedDataRejectsOtherContent(t *testing.T) {
	der, err := asn1.Marshal(contentInfo{ContentType: oid.Data})
	require.NoError(t, err)
	_, err = ParseSignedData(der)
	require.Error(t, err)
}

func TestMasterListContentRoundTrip(t *testing.T) {
	c1, _ := rsaSigner(t, "csca-1")
	c2, _ := ecdsaSigner(t, "csca-2")

	content, err := BuildMasterListContent([]*x509.Certificate{c1, c2})
	require.NoError(t, err)

	certs, err := ParseMasterListContent(content)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "csca-1", certs[0].Subject.CommonName)
	assert.Equal(t, "csca-2", certs[1].Subject.CommonName)
}

func TestMasterListContentDeepNesting(t *testing.T) {
	c1, _ := rsaSigner(t, "nested-csca")

	// wrap the certificate set one level deeper than the standard form
	inner, err := BuildMasterListContent([]*x509.Certificate{c1})
	require.NoError(t, err)
	var outer asn1.RawValue
	_, err = asn1.Unmarshal(inner, &outer)
	require.NoError(t, err)
	deep, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true, Bytes: outer.FullBytes,
	})
	require.NoError(t, err)

	certs, err := ParseMasterListContent(deep)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "nested-csca", certs[0].Subject.CommonName)
}

func TestMasterListContentEmpty(t *testing.T) {
	content, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true,
	})
	require.NoError(t, err)
	_, err = ParseMasterListContent(content)
	require.Error(t, err)
}

func TestLDSSecurityObjectRoundTrip(t *testing.T) {
	lds := &LDSSecurityObject{
		Version:       0,
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oid.DigestAlgorithmSHA256, Parameters: asn1.NullRawValue},
		DataGroupHashes: []DataGroupHash{
			{DataGroupNumber: 1, HashValue: []byte{1, 2, 3}},
			{DataGroupNumber: 2, HashValue: []byte{4, 5, 6}},
		},
	}
	der, err := MarshalLDSSecurityObject(lds)
	require.NoError(t, err)

	parsed, err := ParseLDSSecurityObject(der)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, parsed.HashFor(1))
	assert.Equal(t, []byte{4, 5, 6}, parsed.HashFor(2))
	assert.Nil(t, parsed.HashFor(3))
}

func TestUnwrapSOD(t *testing.T) {
	cert, key := rsaSigner(t, "sod-dsc")
	b := NewBuilder(oid.LDSSecurityObject, []byte("lds"))
	require.NoError(t, b.AddSigner(cert, key))
	cmsDER, err := b.Finish()
	require.NoError(t, err)

	wrapped, err := WrapSOD(cmsDER)
	require.NoError(t, err)
	assert.Equal(t, byte(0x77), wrapped[0])

	inner, err := UnwrapSOD(wrapped)
	require.NoError(t, err)
	assert.Equal(t, cmsDER, inner)

	// already unwrapped passes through
	passthrough, err := UnwrapSOD(cmsDER)
	require.NoError(t, err)
	assert.Equal(t, cmsDER, passthrough)

	// other APPLICATION tags are rejected
	other, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassApplication, Tag: 24, IsCompound: true, Bytes: cmsDER})
	require.NoError(t, err)
	_, err = UnwrapSOD(other)
	require.Error(t, err)
}
