package dg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ICAO Doc 9303 Part 4 specimen MRZ
const (
	specimenLine1 = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	specimenLine2 = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"
	specimenMRZ   = specimenLine1 + specimenLine2
)

// tlv builds one DER element from a raw tag and content
func tlv(tag []byte, content []byte) []byte {
	out := append([]byte{}, tag...)
	n := len(content)
	switch {
	case n < 0x80:
		out = append(out, byte(n))
	case n < 0x100:
		out = append(out, 0x81, byte(n))
	default:
		out = append(out, 0x82, byte(n>>8), byte(n))
	}
	return append(out, content...)
}

func dg1Blob(mrz string) []byte {
	return tlv([]byte{0x61}, tlv([]byte{0x5F, 0x1F}, []byte(mrz)))
}

func Test_ParseDG1(t *testing.T) {
	m, err := ParseDG1(dg1Blob(specimenMRZ), true)
	require.NoError(t, err)

	assert.Equal(t, "P", m.DocumentType)
	assert.Equal(t, "UTO", m.IssuingCountry)
	assert.Equal(t, "ERIKSSON", m.Surname)
	assert.Equal(t, "ANNA MARIA", m.GivenNames)
	assert.Equal(t, "L898902C3", m.DocumentNumber)
	assert.Equal(t, "UTO", m.Nationality)
	assert.Equal(t, "1974-08-12", m.DateOfBirth)
	assert.Equal(t, "F", m.Sex)
	assert.Equal(t, "2012-04-15", m.ExpirationDate)
	assert.Equal(t, "ZE184226B", m.PersonalNumber)
}

func Test_TD3RoundTrip(t *testing.T) {
	m, err := ParseTD3(specimenMRZ, true)
	require.NoError(t, err)
	assert.Equal(t, specimenMRZ, m.FormatTD3())
}

func Test_TD3CheckDigits(t *testing.T) {
	// break the document-number check digit
	bad := specimenLine1 + "L898902C37" + specimenLine2[10:]
	_, err := ParseTD3(bad, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document number")

	// the same input parses with verification disabled
	m, err := ParseTD3(bad, false)
	require.NoError(t, err)
	assert.Equal(t, "L898902C3", m.DocumentNumber)
}

func Test_TD3PivotYear(t *testing.T) {
	assert.Equal(t, "1950-01-01", expandDate("500101"))
	assert.Equal(t, "2049-12-31", expandDate("491231"))
}

func Test_TD3BadLength(t *testing.T) {
	_, err := ParseTD3("P<UTO", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported MRZ length")
}

func Test_ParseDG1Newlines(t *testing.T) {
	m, err := ParseDG1(dg1Blob(specimenLine1+"\n"+specimenLine2), true)
	require.NoError(t, err)
	assert.Equal(t, "ERIKSSON", m.Surname)
}

func Test_ParseDG1Malformed(t *testing.T) {
	_, err := ParseDG1([]byte{0x61, 0x05, 0x01}, false)
	require.Error(t, err)
}

func Test_CheckDigit(t *testing.T) {
	assert.Equal(t, 3, checkDigit("520727"))
	assert.Equal(t, 0, checkDigit("<<<<<<"))
	assert.Equal(t, 6, checkDigit("L898902C3"))
}
