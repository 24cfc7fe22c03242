package publisher_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/publisher"
	"github.com/go-phorce/pkd/pkd/truststore/inmem"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory records adds and reports already-exists on a repeated DN
type fakeDirectory struct {
	entries map[string]*ldap.AddRequest
	failDNs map[string]bool
	closed  bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		entries: map[string]*ldap.AddRequest{},
		failDNs: map[string]bool{},
	}
}

func (d *fakeDirectory) Add(req *ldap.AddRequest) error {
	if d.failDNs[req.DN] {
		return ldap.NewError(ldap.LDAPResultUnavailable, assert.AnError)
	}
	if _, ok := d.entries[req.DN]; ok {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, assert.AnError)
	}
	d.entries[req.DN] = req
	return nil
}

func (d *fakeDirectory) Close() error {
	d.closed = true
	return nil
}

func attr(req *ldap.AddRequest, name string) []string {
	for _, a := range req.Attributes {
		if a.Type == name {
			return a.Vals
		}
	}
	return nil
}

func storedCert(uploadID uuid.UUID, fp, subjectDN, serial, cc string, ct model.CertType, status model.Status, errs ...model.ValidationError) *model.Certificate {
	return &model.Certificate{
		ID:           uuid.New(),
		UploadID:     uploadID,
		Fingerprint:  fp,
		Raw:          []byte("der-" + fp),
		SerialNumber: serial,
		Subject:      model.SubjectInfo{CountryCode: cc, CommonName: subjectDN},
		SubjectDN:    subjectDN,
		Type:         ct,
		Status:       status,
		Errors:       errs,
	}
}

func storedCRL(uploadID uuid.UUID, issuerCN, issuerDN, cc string) *model.CRL {
	return &model.CRL{
		ID:       uuid.New(),
		UploadID: uploadID,
		IssuerCN: issuerCN,
		IssuerDN: issuerDN,
		CountryCode: cc,
		Validity: model.ValidityPeriod{
			NotBefore: time.Now().Add(-time.Hour),
			NotAfter:  time.Now().AddDate(0, 1, 0),
		},
		Raw:    []byte("crl-" + issuerCN),
		Status: model.StatusValid,
	}
}

func Test_PublishUpload(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local"}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	uploadID := uuid.New()
	csca := storedCert(uploadID, "fp1", "CN=CSCA-DE,O=bund,C=DE", "0a1b", "DE", model.CertTypeCSCA, model.StatusValid)
	dsc := storedCert(uploadID, "fp2", "CN=DSC-DE-1,O=bund,C=DE", "0a1c", "DE", model.CertTypeDSC, model.StatusValid)
	require.NoError(t, store.Save(ctx, csca))
	require.NoError(t, store.Save(ctx, dsc))
	require.NoError(t, store.SaveCRL(ctx, storedCRL(uploadID, "CSCA-DE", "CN=CSCA-DE,O=bund,C=DE", "DE")))

	res, err := pub.Publish(ctx, uploadID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Uploaded)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Failed)

	cscaDN := "cn=CN\\=CSCA-DE\\,O\\=bund\\,C\\=DE+sn=0a1b,o=csca,c=DE,dc=pkd,dc=local"
	req, ok := dir.entries[cscaDN]
	require.True(t, ok, "expected %s, got %v", cscaDN, dir.entries)
	assert.Equal(t, []string{"CN=CSCA-DE,O=bund,C=DE"}, attr(req, "cn"))
	assert.Equal(t, []string{"0a1b"}, attr(req, "sn"))
	assert.Equal(t, []string{"VALID"}, attr(req, "description"))
	assert.Equal(t, []string{"der-fp1"}, attr(req, "userCertificate;binary"))

	crlDN := "cn=CN\\=CSCA-DE\\,O\\=bund\\,C\\=DE,o=crl,c=DE,dc=pkd,dc=local"
	req, ok = dir.entries[crlDN]
	require.True(t, ok)
	assert.Equal(t, []string{"crl-CSCA-DE"}, attr(req, "certificateRevocationList;binary"))
}

// republishing produces no observable change
func Test_PublishIdempotent(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local"}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	uploadID := uuid.New()
	require.NoError(t, store.Save(ctx, storedCert(uploadID, "fp1", "CN=CSCA-FR,C=FR", "01", "FR", model.CertTypeCSCA, model.StatusValid)))

	res, err := pub.Publish(ctx, uploadID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)

	res, err = pub.Publish(ctx, uploadID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Uploaded)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, dir.entries, 1)
}

// artifacts are published whatever their status; auditors find the
// failures through the description attribute
func Test_PublishAllStatuses(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local"}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	uploadID := uuid.New()
	invalid := storedCert(uploadID, "fp1", "CN=DSC-KR-9,C=KR", "ff", "KR", model.CertTypeDSC, model.StatusInvalid,
		model.ValidationError{Code: model.CodeChainIncomplete, Message: "issuing CSCA not in trust store"})
	require.NoError(t, store.Save(ctx, invalid))

	res, err := pub.Publish(ctx, uploadID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Uploaded)

	req := dir.entries[pub.CertificateDN(invalid)]
	require.NotNil(t, req)
	assert.Equal(t, []string{"INVALID: issuing CSCA not in trust store"}, attr(req, "description"))
}

func Test_PublishPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local", BatchSize: 2}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	uploadID := uuid.New()
	a := storedCert(uploadID, "fp1", "CN=DSC-NL-1,C=NL", "01", "NL", model.CertTypeDSC, model.StatusValid)
	b := storedCert(uploadID, "fp2", "CN=DSC-NL-2,C=NL", "02", "NL", model.CertTypeDSC, model.StatusValid)
	c := storedCert(uploadID, "fp3", "CN=DSC-NL-3,C=NL", "03", "NL", model.CertTypeDSC, model.StatusValid)
	require.NoError(t, store.SaveAll(ctx, []*model.Certificate{a, b, c}))
	dir.failDNs[pub.CertificateDN(b)] = true

	res, err := pub.Publish(ctx, uploadID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.FailedDNs, 1)
	assert.Equal(t, pub.CertificateDN(b), res.FailedDNs[0])
}

func Test_PublishCancelled(t *testing.T) {
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local"}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	uploadID := uuid.New()
	require.NoError(t, store.Save(context.Background(),
		storedCert(uploadID, "fp1", "CN=CSCA-SE,C=SE", "01", "SE", model.CertTypeCSCA, model.StatusValid)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pub.Publish(ctx, uploadID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(model.CodeCancelled))
}

func Test_PublishEmptyUpload(t *testing.T) {
	store := inmem.NewProvider()
	dir := newFakeDirectory()
	cfg := &config.Config{Directory: config.DirectoryConfig{BaseDN: "dc=pkd,dc=local"}}
	pub := publisher.New(store.Certs(), store.CRLs(), dir, cfg)

	res, err := pub.Publish(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Uploaded+res.Skipped+res.Failed)
}
