package util

import (
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/go-phorce/pkd/metrics"
)

var (
	keyForCertExpiry = []string{"cert", "expiry", "days"}
	keyForCrlExpiry  = []string{"crl", "expiry", "days"}
)

// PublishCertExpirationInDays publish cert expiration time in Days
func PublishCertExpirationInDays(c *x509.Certificate, typ string) float32 {
	expiresIn := c.NotAfter.Sub(time.Now().UTC())
	expiresInDays := float32(expiresIn) / float32(time.Hour*24)
	metrics.SetGauge(
		keyForCertExpiry,
		expiresInDays,
		metrics.Tag{Name: "CN", Value: c.Subject.CommonName},
		metrics.Tag{Name: "type", Value: typ},
		metrics.Tag{Name: "Serial", Value: c.SerialNumber.String()},
		metrics.Tag{Name: "SKI", Value: hex.EncodeToString(c.SubjectKeyId)},
	)
	return expiresInDays
}

// PublishCRLExpirationInDays publish CRL expiration time in Days
func PublishCRLExpirationInDays(crl *x509.RevocationList, issuerCN string) float32 {
	expiresIn := crl.NextUpdate.Sub(time.Now().UTC())
	expiresInDays := float32(expiresIn) / float32(time.Hour*24)
	metrics.SetGauge(
		keyForCrlExpiry,
		expiresInDays,
		metrics.Tag{Name: "CN", Value: issuerCN},
		metrics.Tag{Name: "Number", Value: crl.Number.String()},
	)
	return expiresInDays
}
