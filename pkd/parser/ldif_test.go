package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLdifEntriesFolding(t *testing.T) {
	doc := "version: 1\n" +
		"\n" +
		"# a comment\n" +
		"dn: cn=folded,o=dsc,c=KR\n" +
		"description: a value that\n" +
		"  continues on the next line\n" +
		"seeAlso:: aGVsbG8=\n" +
		"\n" +
		"dn: cn=second,o=csca,c=DE\n" +
		"description: short\n"

	entries, err := parseLdifEntries([]byte(doc))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "cn=folded,o=dsc,c=KR", entries[0].DN)
	assert.Equal(t, "a value that continues on the next line", string(entries[0].Value("description")))
	assert.Equal(t, "hello", string(entries[0].Value("seeAlso")))
	assert.Equal(t, "cn=second,o=csca,c=DE", entries[1].DN)
}

func TestParseLdifEntriesBinaryOption(t *testing.T) {
	doc := "dn: cn=x,o=dsc,c=KR\n" +
		"userCertificate;binary:: AQID\n"

	entries, err := parseLdifEntries([]byte(doc))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte{1, 2, 3}, entries[0].Value("userCertificate"))
	assert.True(t, entries[0].Has("usercertificate"))
}

func TestParseLdifEntriesBadBase64(t *testing.T) {
	doc := "dn: cn=x\n" +
		"userCertificate;binary:: !!!notbase64\n"
	_, err := parseLdifEntries([]byte(doc))
	require.Error(t, err)
}

func TestParseLdifEntriesAttributeBeforeDN(t *testing.T) {
	_, err := parseLdifEntries([]byte("description: orphan\n"))
	require.Error(t, err)
}
