package oid

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAlgorithmByOID(t *testing.T) {
	info, err := HashAlgorithmByOID(DigestAlgorithmSHA256)
	require.NoError(t, err)
	assert.Equal(t, "SHA256", info.Name())
	assert.Equal(t, crypto.SHA256, info.HashFunc())
	assert.Equal(t, "2.16.840.1.101.3.4.2.1", info.String())

	_, err = HashAlgorithmByOID(SignatureAlgorithmRSA)
	require.Error(t, err)
}

func TestHashAlgorithmByName(t *testing.T) {
	info, err := HashAlgorithmByName("SHA512")
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA512, info.HashFunc())

	_, err = HashAlgorithmByName("MD5")
	require.Error(t, err)
}

func TestResolveAllowList(t *testing.T) {
	require.NoError(t, ResolveAllowList([]string{"SHA1", "SHA256", "SHA384", "SHA512"}))
	require.Error(t, ResolveAllowList([]string{"SHA256", "GOST"}))
}

func TestSignatureHashByOID(t *testing.T) {
	h, err := SignatureHashByOID(RSAWithSHA256)
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA256, h)

	h, err = SignatureHashByOID(ECDSAWithSHA384)
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA384, h)

	_, err = SignatureHashByOID(SignatureAlgorithmRSAPSS)
	require.Error(t, err)
}
