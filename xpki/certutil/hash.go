// Package certutil provides X.509 helpers used across the PKD:
// fingerprints, DN formatting and normalization, and PEM loading.
package certutil

import (
	"crypto"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/go-phorce/pkd/xlog"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "certutil")

var strToHash = map[string]crypto.Hash{
	"SHA1":   crypto.SHA1,
	"SHA224": crypto.SHA224,
	"SHA256": crypto.SHA256,
	"SHA384": crypto.SHA384,
	"SHA512": crypto.SHA512,
}

// StrToHashAlgo converts a name to a hash algorithm, 0 if unknown
func StrToHashAlgo(algo string) crypto.Hash {
	return strToHash[strings.ToUpper(algo)]
}

// NewHash returns a hash instance for the named algorithm
func NewHash(algo string) (hash.Hash, error) {
	if h, ok := strToHash[strings.ToUpper(algo)]; ok {
		return h.New(), nil
	}
	return nil, errors.Errorf("unsupported hash algorithm: %q", algo)
}

// Digest returns the computed digest bytes
func Digest(hash crypto.Hash, data []byte) []byte {
	h := hash.New()
	_, err := h.Write(data)
	if err != nil {
		logger.Panicf("digest failed: %s", errors.Trace(err))
	}
	return h.Sum(nil)
}

// SHA256 returns the SHA256 digest
func SHA256(data []byte) []byte {
	return Digest(crypto.SHA256, data)
}

// SHA256Hex returns the hex-encoded SHA256 digest
func SHA256Hex(data []byte) string {
	return HashToHex(crypto.SHA256, data)
}

// HashToHex returns the hex-encoded digest
func HashToHex(hash crypto.Hash, data []byte) string {
	return hex.EncodeToString(Digest(hash, data))
}

// Fingerprint returns the lowercase hex SHA-256 of the DER encoding,
// the globally unique identifier of a certificate in the trust store
func Fingerprint(der []byte) string {
	return SHA256Hex(der)
}
