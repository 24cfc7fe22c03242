package pa_test

import (
	"context"
	"encoding/asn1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/pa"
	"github.com/go-phorce/pkd/pkd/parser"
	"github.com/go-phorce/pkd/pkd/truststore/inmem"
	"github.com/go-phorce/pkd/pkd/validator"
	"github.com/go-phorce/pkd/testify/testmrtd"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dg1Bytes = []byte("P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<L898902C36UTO7408122F1204159ZE184226B<<<<<10")
	dg2Bytes = []byte{0x75, 0x03, 0x30, 0x01, 0x00}
)

type paFixture struct {
	store  *inmem.Provider
	engine *pa.Engine
	cfg    *config.Config
}

func newPAFixture(t *testing.T, cfg *config.Config) *paFixture {
	store := inmem.NewProvider()
	engine, err := pa.New(store.Certs(), store.CRLs(), store.Invocations(), cfg)
	require.NoError(t, err)
	return &paFixture{
		store:  store,
		engine: engine,
		cfg:    cfg,
	}
}

// seedCSCA stores the CSCA through the ingest pipeline so the
// subject-DN lookup key matches production behavior
func (f *paFixture) seedCSCA(t *testing.T, csca *testmrtd.Entity, country string) {
	p, err := parser.New(f.store.Certs(), f.cfg)
	require.NoError(t, err)
	v := validator.New(f.store.Certs(), f.store.CRLs(), f.store.Audit(), f.cfg)

	ldif := testmrtd.BuildLDIF(
		testmrtd.CertEntry(testmrtd.EntryDN("CSCA-"+country, "csca", country), csca.Certificate.Raw),
	)
	ctx := context.Background()
	pf, err := p.Parse(ctx, ldif, model.CscaMasterListLdif, uuid.New())
	require.NoError(t, err)
	_, err = v.Validate(ctx, pf, nil)
	require.NoError(t, err)
}

func requireGaplessLog(t *testing.T, inv *model.PAInvocation) {
	require.NotEmpty(t, inv.AuditLog)
	for i, e := range inv.AuditLog {
		require.Equal(t, i+1, e.Sequence, "audit sequence must be gapless")
	}
}

func Test_AuthenticateHappyPath(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("KR")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "KR")

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes, 2: dg2Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:       sod,
		DataGroups:     map[int][]byte{1: dg1Bytes, 2: dg2Bytes},
		IssuingCountry: "KR",
		Metadata:       model.RequestMetadata{RequestedBy: "inspector-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAValid, inv.OverallStatus)
	assert.True(t, inv.CertificateChainValid)
	assert.True(t, inv.SodSignatureValid)
	assert.Equal(t, 2, inv.TotalDataGroups)
	assert.Equal(t, 2, inv.ValidDataGroups)
	assert.Equal(t, 0, inv.InvalidDataGroups)
	assert.Empty(t, inv.Errors)
	assert.GreaterOrEqual(t, len(inv.AuditLog), 18)
	requireGaplessLog(t, inv)
	assert.Equal(t, "KR", inv.IssuingCountry)
	assert.Equal(t, "inspector-1", inv.Metadata.RequestedBy)

	// persisted atomically with its log
	stored, err := f.store.FindInvocationByID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.AuditLog, len(inv.AuditLog))
}

func Test_AuthenticateTamperedDG1(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("KR")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "KR")

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes, 2: dg2Bytes})
	tampered := append([]byte{}, dg1Bytes...)
	tampered[10] ^= 0xFF

	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: tampered, 2: dg2Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	assert.Equal(t, 1, inv.InvalidDataGroups)
	// the untampered group is still verified
	assert.Equal(t, 1, inv.ValidDataGroups)
	assert.Equal(t, inv.TotalDataGroups, inv.ValidDataGroups+inv.InvalidDataGroups)

	var mismatch *model.AuditLogEntry
	for i := range inv.AuditLog {
		if inv.AuditLog[i].ErrorCode == model.CodeDataGroupHashMismatch {
			mismatch = &inv.AuditLog[i]
		}
	}
	require.NotNil(t, mismatch)
	assert.Equal(t, model.StepDataGroupHash, mismatch.Step)
	expected, ok := mismatch.Details["expected"].(string)
	require.True(t, ok)
	actual, ok := mismatch.Details["actual"].(string)
	require.True(t, ok)
	_, err = hex.DecodeString(expected)
	assert.NoError(t, err)
	_, err = hex.DecodeString(actual)
	assert.NoError(t, err)
	assert.NotEqual(t, expected, actual)
	requireGaplessLog(t, inv)
}

func Test_AuthenticateMissingCSCA(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	dsc := testmrtd.NewCSCA("KR").IssueDSC()

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeCscaNotFound, inv.Errors[0].Code)

	// later phases are skipped
	assert.False(t, inv.CertificateChainValid)
	assert.False(t, inv.SodSignatureValid)
	assert.Equal(t, 0, inv.TotalDataGroups)
	for _, e := range inv.AuditLog {
		assert.NotEqual(t, model.StepSodSignature, e.Step)
		assert.NotEqual(t, model.StepCrlCheck, e.Step)
	}
	requireGaplessLog(t, inv)
}

func Test_AuthenticateUndeclaredDG(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("DE")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "DE")

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes, 3: []byte("surprise")},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	assert.Equal(t, 2, inv.TotalDataGroups)
	assert.Equal(t, 1, inv.ValidDataGroups)
	assert.Equal(t, 1, inv.InvalidDataGroups)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeUndeclaredDataGroup, inv.Errors[0].Code)
}

// SOD-declared groups absent from the input are warnings, not failures
func Test_AuthenticateMissingDeclaredDG(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("FR")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "FR")

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes, 2: dg2Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAValid, inv.OverallStatus)
	assert.Equal(t, 1, inv.TotalDataGroups)

	warned := false
	for _, e := range inv.AuditLog {
		if e.Level == "WARNING" && e.Step == model.StepDataGroupHash {
			warned = true
		}
	}
	assert.True(t, warned)
}

func Test_AuthenticateUnwrappedCMS(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("NL")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "NL")

	// a bare ContentInfo without the application envelope is accepted
	ci := testmrtd.BuildSODContentInfo(dsc, map[int][]byte{1: dg1Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   ci,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PAValid, inv.OverallStatus)
}

func Test_AuthenticateBadEnvelope(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	dsc := testmrtd.NewCSCA("NL").IssueDSC()
	ci := testmrtd.BuildSODContentInfo(dsc, map[int][]byte{1: dg1Bytes})

	wrapped, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassApplication,
		Tag:        5,
		IsCompound: true,
		Bytes:      ci,
	})
	require.NoError(t, err)

	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   wrapped,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeInvalidSodFormat, inv.Errors[0].Code)
}

func Test_AuthenticateTamperedSignature(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("SE")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "SE")

	// flip the last byte of the DER, inside the encrypted digest
	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	sod[len(sod)-1] ^= 0xFF

	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeSodSignatureInvalid, inv.Errors[0].Code)
	assert.False(t, inv.SodSignatureValid)
	assert.True(t, inv.CertificateChainValid)
}

func Test_AuthenticateRevokedDSC(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	csca := testmrtd.NewCSCA("IT")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "IT")

	require.NoError(t, f.store.SaveCRL(context.Background(), &model.CRL{
		ID:          uuid.New(),
		UploadID:    uuid.New(),
		IssuerCN:    "CSCA-IT",
		IssuerDN:    "C=IT, CN=CSCA-IT",
		CountryCode: "IT",
		Validity: model.ValidityPeriod{
			NotBefore: time.Now().Add(-time.Hour),
			NotAfter:  time.Now().AddDate(0, 1, 0),
		},
		RevokedCount: 1,
		Revoked: []model.RevokedEntry{{
			SerialNumber:   hex.EncodeToString(dsc.Certificate.SerialNumber.Bytes()),
			RevocationDate: time.Now().UTC(),
		}},
		Status: model.StatusValid,
	}))

	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeCertificateRevoked, inv.Errors[0].Code)
	assert.Equal(t, model.StepCrlCheck, inv.Errors[0].Step)
}

func Test_AuthenticateStrictCRLMode(t *testing.T) {
	csca := testmrtd.NewCSCA("PL")
	dsc := csca.IssueDSC()
	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	req := &pa.Request{SodBytes: sod, DataGroups: map[int][]byte{1: dg1Bytes}}

	relaxed := newPAFixture(t, &config.Config{})
	relaxed.seedCSCA(t, csca, "PL")
	inv, err := relaxed.engine.AuthenticatePassport(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.PAValid, inv.OverallStatus)

	strict := newPAFixture(t, &config.Config{StrictCRLMode: true})
	strict.seedCSCA(t, csca, "PL")
	inv, err = strict.engine.AuthenticatePassport(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeCrlUnavailable, inv.Errors[0].Code)
}

func Test_NewRejectsUnknownAlgorithm(t *testing.T) {
	store := inmem.NewProvider()
	_, err := pa.New(store.Certs(), store.CRLs(), store.Invocations(), &config.Config{
		AllowedAlgorithms: []string{"SHA256", "MD5"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MD5")
}

func Test_AuthenticateDigestNotAllowListed(t *testing.T) {
	f := newPAFixture(t, &config.Config{AllowedAlgorithms: []string{"SHA384", "SHA512"}})
	csca := testmrtd.NewCSCA("JP")
	dsc := csca.IssueDSC()
	f.seedCSCA(t, csca, "JP")

	// the security object declares SHA-256, which this engine does not accept
	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})
	inv, err := f.engine.AuthenticatePassport(context.Background(), &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAInvalid, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeInvalidSodFormat, inv.Errors[0].Code)
	assert.Equal(t, model.StepDataGroupHash, inv.Errors[0].Step)
	assert.Equal(t, 0, inv.TotalDataGroups)
	requireGaplessLog(t, inv)
}

func Test_AuthenticateCancelled(t *testing.T) {
	f := newPAFixture(t, &config.Config{})
	dsc := testmrtd.NewCSCA("GR").IssueDSC()
	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1Bytes})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv, err := f.engine.AuthenticatePassport(ctx, &pa.Request{
		SodBytes:   sod,
		DataGroups: map[int][]byte{1: dg1Bytes},
	})
	require.NoError(t, err)

	assert.Equal(t, model.PAError, inv.OverallStatus)
	require.NotEmpty(t, inv.Errors)
	assert.Equal(t, model.CodeCancelled, inv.Errors[0].Code)
	requireGaplessLog(t, inv)
}
