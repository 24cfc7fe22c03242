package cms

import (
	"crypto/x509/pkix"
	"encoding/asn1"

	"github.com/juju/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/go-phorce/pkd/xpki/oid"
)

// DataGroupHash is one entry of the LDSSecurityObject
type DataGroupHash struct {
	DataGroupNumber int
	HashValue       []byte
}

// LDSSecurityObject is the ICAO 9303 part 10 structure binding data
// group hashes, carried as the SOD's encapsulated content
type LDSSecurityObject struct {
	Version         int
	HashAlgorithm   pkix.AlgorithmIdentifier
	DataGroupHashes []DataGroupHash
}

// ParseLDSSecurityObject decodes the encapsulated content of a SOD
func ParseLDSSecurityObject(der []byte) (*LDSSecurityObject, error) {
	var lds LDSSecurityObject
	if _, err := asn1.Unmarshal(der, &lds); err != nil {
		return nil, errors.Annotate(err, "unable to parse LDSSecurityObject")
	}
	if _, err := oid.HashAlgorithmByOID(lds.HashAlgorithm.Algorithm); err != nil {
		return nil, errors.Trace(err)
	}
	return &lds, nil
}

// HashFor returns the declared hash for a data group, nil if absent
func (l *LDSSecurityObject) HashFor(dgNumber int) []byte {
	for _, dg := range l.DataGroupHashes {
		if dg.DataGroupNumber == dgNumber {
			return dg.HashValue
		}
	}
	return nil
}

// MarshalLDSSecurityObject encodes an LDSSecurityObject to DER
func MarshalLDSSecurityObject(lds *LDSSecurityObject) ([]byte, error) {
	der, err := asn1.Marshal(*lds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return der, nil
}

// UnwrapSOD strips the ICAO EF.SOD envelope [APPLICATION 23] (0x77),
// returning the inner CMS ContentInfo DER. Already-unwrapped CMS
// (a top-level SEQUENCE) passes through unchanged. Any other tag is
// rejected.
// sodEnvelopeTag is [APPLICATION 23] constructed, 0x77 on the wire
const sodEnvelopeTag = cbasn1.Tag(23) | 0x40 | 0x20

func UnwrapSOD(sodBytes []byte) ([]byte, error) {
	input := cryptobyte.String(sodBytes)
	var inner cryptobyte.String
	var tag cbasn1.Tag
	if !input.ReadAnyASN1(&inner, &tag) {
		return nil, errors.New("unable to read SOD envelope")
	}
	switch tag {
	case sodEnvelopeTag:
		return []byte(inner), nil
	case cbasn1.SEQUENCE:
		return sodBytes, nil
	}
	return nil, errors.Errorf("unexpected SOD envelope tag: 0x%02x", uint8(tag))
}

// WrapSOD adds the [APPLICATION 23] envelope around a CMS ContentInfo
func WrapSOD(contentInfoDER []byte) ([]byte, error) {
	der, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassApplication,
		Tag:        23,
		IsCompound: true,
		Bytes:      contentInfoDER,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return der, nil
}
