package certutil

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	der := []byte{0x30, 0x82, 0x01, 0x0a}
	sum := sha256.Sum256(der)
	assert.Equal(t, hex.EncodeToString(sum[:]), Fingerprint(der))
}

func TestNewHash(t *testing.T) {
	h, err := NewHash("sha256")
	require.NoError(t, err)
	assert.Equal(t, 32, h.Size())

	_, err = NewHash("whirlpool")
	require.Error(t, err)
}

func TestNameToString(t *testing.T) {
	n := pkix.Name{
		Country:      []string{"KR"},
		Organization: []string{"Gov"},
		CommonName:   "CSCA-KR",
	}
	assert.Equal(t, "C=KR, O=Gov, CN=CSCA-KR", NameToString(n))
}

func TestCountryOf(t *testing.T) {
	assert.Equal(t, "KR", CountryOf(pkix.Name{Country: []string{"kr"}}))
	assert.Equal(t, "", CountryOf(pkix.Name{}))
}

func TestNormalizedCN(t *testing.T) {
	tcases := []struct {
		dn  string
		exp string
	}{
		{"CN=CSCA-KR,C=KR", "CSCA-KR"},
		{"C=KR, O=Gov, CN=CSCA-KR", "CSCA-KR"},
		{"cn=lowercase, C=DE", "lowercase"},
		{"O=NoCommonName, C=FR", "O=NoCommonName, C=FR"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, NormalizedCN(tc.dn), "dn: %s", tc.dn)
	}
}
