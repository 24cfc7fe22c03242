package cms

import (
	"crypto/x509"
	"encoding/asn1"

	"github.com/juju/errors"
)

// ParseMasterListContent walks the encapsulated content of a CSCA
// Master List: a SEQUENCE holding a version and a SET of X.509
// certificates. Producers disagree on nesting depth, so the walk
// descends through every SET/SEQUENCE level and skips non-certificate
// elements silently.
func ParseMasterListContent(content []byte) ([]*x509.Certificate, error) {
	var outer asn1.RawValue
	if _, err := asn1.Unmarshal(content, &outer); err != nil {
		return nil, errors.Annotate(err, "unable to parse master list content")
	}
	if outer.Class != asn1.ClassUniversal || outer.Tag != asn1.TagSequence {
		return nil, errors.Errorf("unexpected master list structure: class=%d, tag=%d", outer.Class, outer.Tag)
	}

	var certs []*x509.Certificate
	collectCertificates(outer.Bytes, 0, &certs)
	if len(certs) == 0 {
		return nil, errors.New("master list contains no certificates")
	}
	return certs, nil
}

const maxMasterListDepth = 8

func collectCertificates(b []byte, depth int, out *[]*x509.Certificate) {
	if depth > maxMasterListDepth {
		return
	}
	for len(b) > 0 {
		var el asn1.RawValue
		rest, err := asn1.Unmarshal(b, &el)
		if err != nil {
			return
		}
		b = rest

		if el.Class != asn1.ClassUniversal {
			continue
		}
		switch el.Tag {
		case asn1.TagSequence:
			if cert, cerr := x509.ParseCertificate(el.FullBytes); cerr == nil {
				*out = append(*out, cert)
			} else {
				collectCertificates(el.Bytes, depth+1, out)
			}
		case asn1.TagSet:
			collectCertificates(el.Bytes, depth+1, out)
		}
	}
}

// BuildMasterListContent encodes certificates into the ICAO master
// list content structure (version + SET of certificates)
func BuildMasterListContent(certs []*x509.Certificate) ([]byte, error) {
	var setBytes []byte
	for _, cert := range certs {
		setBytes = append(setBytes, cert.Raw...)
	}
	set, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: setBytes,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	version, err := asn1.Marshal(0)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal, Tag: asn1.TagSequence, IsCompound: true,
		Bytes: append(version, set...),
	})
}
