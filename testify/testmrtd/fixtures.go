package testmrtd

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/go-phorce/pkd/xpki/certutil"
	"github.com/go-phorce/pkd/xpki/cms"
	"github.com/go-phorce/pkd/xpki/oid"
)

// BuildSOD builds a chip-format EF.SOD: an LDSSecurityObject carrying
// SHA-256 hashes of the data groups, CMS-signed by the DSC, wrapped in
// the ICAO [APPLICATION 23] envelope
func BuildSOD(dsc *Entity, dataGroups map[int][]byte) []byte {
	wrapped, err := cms.WrapSOD(BuildSODContentInfo(dsc, dataGroups))
	if err != nil {
		panic(err)
	}
	return wrapped
}

// BuildSODContentInfo builds the inner CMS SignedData without the
// APPLICATION 23 envelope
func BuildSODContentInfo(dsc *Entity, dataGroups map[int][]byte) []byte {
	lds := &cms.LDSSecurityObject{
		Version: 0,
		HashAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oid.DigestAlgorithmSHA256,
			Parameters: asn1.NullRawValue,
		},
	}
	numbers := make([]int, 0, len(dataGroups))
	for n := range dataGroups {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		lds.DataGroupHashes = append(lds.DataGroupHashes, cms.DataGroupHash{
			DataGroupNumber: n,
			HashValue:       certutil.SHA256(dataGroups[n]),
		})
	}

	der, err := cms.MarshalLDSSecurityObject(lds)
	if err != nil {
		panic(err)
	}
	b := cms.NewBuilder(oid.LDSSecurityObject, der)
	if err := b.AddSigner(dsc.Certificate, dsc.PrivateKey); err != nil {
		panic(err)
	}
	sod, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return sod
}

// BuildMasterList builds a CMS-signed CSCA Master List
func BuildMasterList(signer *Entity, cscas []*x509.Certificate) []byte {
	content, err := cms.BuildMasterListContent(cscas)
	if err != nil {
		panic(err)
	}
	b := cms.NewBuilder(oid.CscaMasterList, content)
	if err := b.AddSigner(signer.Certificate, signer.PrivateKey); err != nil {
		panic(err)
	}
	ml, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return ml
}

// BuildCRL builds a DER CRL signed by the issuer entity
func BuildCRL(issuer *Entity, thisUpdate, nextUpdate time.Time, serials ...*big.Int) []byte {
	templ := &x509.RevocationList{
		Number:     big.NewInt(time.Now().UnixNano()),
		ThisUpdate: thisUpdate,
		NextUpdate: nextUpdate,
	}
	for _, sn := range serials {
		templ.RevokedCertificates = append(templ.RevokedCertificates, pkix.RevokedCertificate{
			SerialNumber:   sn,
			RevocationTime: thisUpdate,
		})
	}
	der, err := x509.CreateRevocationList(rand.Reader, templ, issuer.Certificate, issuer.PrivateKey)
	if err != nil {
		panic(err)
	}
	return der
}

// EntryDN composes a download-area LDIF DN, e.g.
// "cn=DSC-KR-1,o=dsc,c=KR,dc=data,dc=download,dc=pkd"
func EntryDN(cn, org, country string) string {
	return fmt.Sprintf("cn=%s,o=%s,c=%s,dc=data,dc=download,dc=pkd", cn, org, country)
}

// CertEntry renders one LDIF record carrying a certificate
func CertEntry(dn string, der []byte) string {
	return "dn: " + dn + "\n" +
		"objectclass: inetOrgPerson\n" +
		"userCertificate;binary:: " + foldBase64(der)
}

// CrlEntry renders one LDIF record carrying a CRL
func CrlEntry(dn string, der []byte) string {
	return "dn: " + dn + "\n" +
		"objectclass: cRLDistributionPoint\n" +
		"certificateRevocationList;binary:: " + foldBase64(der)
}

// MasterListEntry renders one LDIF record embedding a CMS master list
func MasterListEntry(dn string, mlDER []byte) string {
	return "dn: " + dn + "\n" +
		"objectclass: pkdMasterList\n" +
		"pkdMasterListContent:: " + foldBase64(mlDER)
}

// NonConformingEntry renders a DSC record flagged with
// pkdConformanceText
func NonConformingEntry(dn string, der []byte, conformance string) string {
	return CertEntry(dn, der) + "\n" +
		"pkdConformanceText: " + conformance
}

// BuildLDIF joins records into an RFC 2849 document
func BuildLDIF(entries ...string) []byte {
	return []byte("version: 1\n\n" + strings.Join(entries, "\n\n") + "\n")
}

// foldBase64 encodes and folds at 76 columns with the LDIF
// continuation convention
func foldBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for i := 0; i < len(enc); i += 76 {
		end := i + 76
		if end > len(enc) {
			end = len(enc)
		}
		if i > 0 {
			sb.WriteString("\n ")
		}
		sb.WriteString(enc[i:end])
	}
	return sb.String()
}
