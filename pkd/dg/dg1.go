// Package dg decodes the biometric-bearing data groups of an eMRTD
// chip: DG1 carries the MRZ text and DG2 the ISO/IEC 19794-5 face
// record. Both tolerate the tagging variations observed in production
// passports.
package dg

import (
	"encoding/asn1"
	"strings"

	"github.com/go-phorce/pkd/xlog"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "dg")

const td3Length = 88

// MRZ holds the decoded fields of a TD3 machine-readable zone
type MRZ struct {
	DocumentType   string `json:"document_type"`
	IssuingCountry string `json:"issuing_country"`
	Surname        string `json:"surname"`
	GivenNames     string `json:"given_names"`
	DocumentNumber string `json:"document_number"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"date_of_birth"`
	Sex            string `json:"sex"`
	ExpirationDate string `json:"expiration_date"`
	PersonalNumber string `json:"personal_number"`
}

// ParseDG1 unwraps the DG1 envelope and decodes the contained MRZ.
// verifyCheckDigits enables the weighted check-digit validation.
func ParseDG1(der []byte, verifyCheckDigits bool) (*MRZ, error) {
	text, err := unwrapPayload(der)
	if err != nil {
		return nil, errors.Annotate(err, "unable to unwrap DG1")
	}
	mrz := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, string(text))
	return ParseTD3(mrz, verifyCheckDigits)
}

// ParseTD3 decodes the 88-character two-line TD3 MRZ
func ParseTD3(mrz string, verifyCheckDigits bool) (*MRZ, error) {
	if len(mrz) != td3Length {
		return nil, errors.Errorf("unsupported MRZ length: %d", len(mrz))
	}
	line1, line2 := mrz[:44], mrz[44:]

	if verifyCheckDigits {
		if err := verifyTD3CheckDigits(line2); err != nil {
			return nil, errors.Trace(err)
		}
	}

	surname, given := splitName(line1[5:44])
	m := &MRZ{
		DocumentType:   strings.TrimRight(line1[0:1], "<"),
		IssuingCountry: strings.TrimRight(line1[2:5], "<"),
		Surname:        surname,
		GivenNames:     given,
		DocumentNumber: strings.TrimRight(line2[0:9], "<"),
		Nationality:    strings.TrimRight(line2[10:13], "<"),
		DateOfBirth:    expandDate(line2[13:19]),
		Sex:            line2[20:21],
		ExpirationDate: expandDate(line2[21:27]),
		PersonalNumber: strings.TrimRight(line2[28:42], "<"),
	}
	return m, nil
}

// FormatTD3 renders the fields back into the 88-character form; for
// inputs that pass check digits this is the inverse of ParseTD3
func (m *MRZ) FormatTD3() string {
	line1 := pad(m.DocumentType, 1) + "<" + pad(m.IssuingCountry, 3) + pad(encodeName(m.Surname, m.GivenNames), 39)

	doc := pad(m.DocumentNumber, 9)
	birth := compactDate(m.DateOfBirth)
	expiry := compactDate(m.ExpirationDate)
	personal := pad(m.PersonalNumber, 14)

	line2 := doc + digit(checkDigit(doc)) +
		pad(m.Nationality, 3) +
		birth + digit(checkDigit(birth)) +
		m.Sex +
		expiry + digit(checkDigit(expiry)) +
		personal + digit(checkDigit(personal))
	line2 += digit(checkDigit(line2[0:10] + line2[13:20] + line2[21:43]))
	return line1 + line2
}

func verifyTD3CheckDigits(line2 string) error {
	checks := []struct {
		field string
		cd    byte
		name  string
	}{
		{line2[0:9], line2[9], "document number"},
		{line2[13:19], line2[19], "date of birth"},
		{line2[21:27], line2[27], "expiration date"},
		{line2[28:42], line2[42], "personal number"},
		{line2[0:10] + line2[13:20] + line2[21:43], line2[43], "composite"},
	}
	for _, c := range checks {
		// a '<' filler is accepted for an empty optional field
		if c.name == "personal number" && strings.Trim(c.field, "<") == "" && c.cd == '<' {
			continue
		}
		if digit(checkDigit(c.field)) != string(c.cd) {
			return errors.Errorf("check digit mismatch: %s", c.name)
		}
	}
	return nil
}

// checkDigit computes the ICAO 7-3-1 weighted check digit
func checkDigit(field string) int {
	weights := []int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		case c == '<':
			v = 0
		default:
			v = 0
		}
		sum += v * weights[i%3]
	}
	return sum % 10
}

func digit(d int) string {
	return string(rune('0' + d))
}

func splitName(field string) (surname, given string) {
	name := strings.TrimRight(field, "<")
	parts := strings.SplitN(name, "<<", 2)
	surname = strings.ReplaceAll(parts[0], "<", " ")
	if len(parts) > 1 {
		given = strings.ReplaceAll(parts[1], "<", " ")
	}
	return surname, given
}

func encodeName(surname, given string) string {
	s := strings.ReplaceAll(surname, " ", "<")
	if given == "" {
		return s
	}
	return s + "<<" + strings.ReplaceAll(given, " ", "<")
}

// expandDate maps YYMMDD to YYYY-MM-DD with the 1950 pivot
func expandDate(ymd string) string {
	if len(ymd) != 6 || !isDigits(ymd) {
		return ymd
	}
	century := "20"
	if ymd[0] >= '5' {
		century = "19"
	}
	return century + ymd[0:2] + "-" + ymd[2:4] + "-" + ymd[4:6]
}

func compactDate(date string) string {
	if len(date) == 10 && date[4] == '-' && date[7] == '-' {
		return date[2:4] + date[5:7] + date[8:10]
	}
	return pad(date, 6)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat("<", n-len(s))
}

// unwrapPayload peels TaggedObject layers until it reaches an OCTET
// STRING or a primitive tagged value, and returns the contents
func unwrapPayload(der []byte) ([]byte, error) {
	data := der
	for depth := 0; depth < 16; depth++ {
		var rv asn1.RawValue
		if _, err := asn1.Unmarshal(data, &rv); err != nil {
			return nil, errors.Annotate(err, "malformed encoding")
		}
		if rv.Class == asn1.ClassUniversal && rv.Tag == asn1.TagOctetString {
			return rv.Bytes, nil
		}
		if !rv.IsCompound {
			return rv.Bytes, nil
		}
		data = rv.Bytes
	}
	return nil, errors.Errorf("tag nesting exceeds %d levels", 16)
}
