package util_test

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/go-phorce/pkd/metrics/util"
	"github.com/go-phorce/pkd/testify/testmrtd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PublishCertExpirationInDays(t *testing.T) {
	csca := testmrtd.NewCSCA("DE")
	days := util.PublishCertExpirationInDays(csca.Certificate, "CSCA")
	assert.True(t, days > 0, "test CSCA must not be expired")

	expired := testmrtd.NewCSCA("DE",
		testmrtd.NotBefore(time.Now().Add(-48*time.Hour)),
		testmrtd.NotAfter(time.Now().Add(-24*time.Hour)))
	days = util.PublishCertExpirationInDays(expired.Certificate, "CSCA")
	assert.True(t, days < 0)
}

func Test_PublishCRLExpirationInDays(t *testing.T) {
	csca := testmrtd.NewCSCA("FR")
	der := testmrtd.BuildCRL(csca, time.Now().Add(-time.Hour), time.Now().Add(72*time.Hour))
	crl, err := x509.ParseRevocationList(der)
	require.NoError(t, err)

	days := util.PublishCRLExpirationInDays(crl, "CSCA-FR")
	assert.True(t, days > 2 && days < 4)
}
