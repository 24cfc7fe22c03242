package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_EscapeDN(t *testing.T) {
	tcases := []struct {
		in  string
		exp string
	}{
		{"CSCA-KR", "CSCA-KR"},
		{"CN=CSCA-KR,C=KR", "CN\\=CSCA-KR\\,C\\=KR"},
		{"a+b<c>d\"e;f\\g", "a\\+b\\<c\\>d\\\"e\\;f\\\\g"},
		{" leading", "\\ leading"},
		{"trailing ", "trailing\\ "},
		{"#hash", "\\#hash"},
		{"mid # hash", "mid # hash"},
		{"", ""},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, escapeDN(tc.in), "input: %q", tc.in)
	}
}
