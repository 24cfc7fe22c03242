package certutil

import (
	"crypto/x509/pkix"
	"fmt"
	"strings"
)

// NameToString converts Name to a string compatible with openssl output
func NameToString(name pkix.Name) string {
	parts := []string{}
	for _, c := range name.Country {
		parts = append(parts, fmt.Sprintf("C=%s", c))
	}
	for _, c := range name.Province {
		parts = append(parts, fmt.Sprintf("ST=%s", c))
	}
	for _, c := range name.Locality {
		parts = append(parts, fmt.Sprintf("L=%s", c))
	}
	for _, c := range name.Organization {
		parts = append(parts, fmt.Sprintf("O=%s", c))
	}
	for _, c := range name.OrganizationalUnit {
		parts = append(parts, fmt.Sprintf("OU=%s", c))
	}
	if name.CommonName != "" {
		parts = append(parts, fmt.Sprintf("CN=%s", name.CommonName))
	}
	if name.SerialNumber != "" {
		parts = append(parts, fmt.Sprintf("SERIALNUMBER=%s", name.SerialNumber))
	}
	return strings.Join(parts, ", ")
}

// CountryOf returns the C= RDN of the name, uppercased
func CountryOf(name pkix.Name) string {
	if len(name.Country) == 0 {
		return ""
	}
	return strings.ToUpper(name.Country[0])
}

// FirstOf returns the first element of the list, or empty
func FirstOf(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// NormalizedCN extracts the bare CN value from a DN string,
// e.g. "C=KR, CN=CSCA-KR" yields "CSCA-KR". When the DN carries no CN,
// the whole trimmed string is returned so that degenerate issuer names
// still key consistently.
func NormalizedCN(dn string) string {
	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 3 && strings.EqualFold(part[:3], "CN=") {
			return strings.TrimSpace(part[3:])
		}
	}
	return strings.TrimSpace(dn)
}
