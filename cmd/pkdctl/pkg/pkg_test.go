package pkg_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-phorce/pkd/cmd/pkdctl/pkg"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/testify/testmrtd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specimenMRZ = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<" +
	"L898902C36UTO7408122F1204159ZE184226B<<<<<10"

func run(t *testing.T, args ...string) (ctl.ReturnCode, string) {
	out := &bytes.Buffer{}
	rc := pkg.ParseAndRun("pkdctl", append([]string{"pkdctl"}, args...), out)
	return rc, out.String()
}

func writeLDIF(t *testing.T, dir, cc string) string {
	csca := testmrtd.NewCSCA(cc)
	dsc := csca.IssueDSC()
	ldif := testmrtd.BuildLDIF(
		testmrtd.CertEntry(testmrtd.EntryDN("CSCA-"+cc, "csca", cc), csca.Certificate.Raw),
		testmrtd.CertEntry(testmrtd.EntryDN(dsc.Certificate.Subject.CommonName, "dsc", cc), dsc.Certificate.Raw),
	)
	name := filepath.Join(dir, cc+".ldif")
	require.NoError(t, ioutil.WriteFile(name, ldif, 0644))
	return name
}

// tlv builds a DER TLV with a one or two byte length
func tlv(tag []byte, content []byte) []byte {
	out := append([]byte{}, tag...)
	n := len(content)
	switch {
	case n < 0x80:
		out = append(out, byte(n))
	case n <= 0xff:
		out = append(out, 0x81, byte(n))
	default:
		out = append(out, 0x82, byte(n>>8), byte(n))
	}
	return append(out, content...)
}

func writeDG1(t *testing.T, dir string) string {
	blob := tlv([]byte{0x61}, tlv([]byte{0x5F, 0x1F}, []byte(specimenMRZ)))
	name := filepath.Join(dir, "dg1.bin")
	require.NoError(t, ioutil.WriteFile(name, blob, 0644))
	return name
}

func Test_NoCommand(t *testing.T) {
	rc, _ := run(t)
	assert.Equal(t, ctl.RCUsage, rc)
}

func Test_Upload(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rc, out := run(t, "upload", "--in", writeLDIF(t, dir, "DE"))
	require.Equal(t, ctl.RCOkay, rc)
	assert.Contains(t, out, `"parsed": 2`)
	assert.Contains(t, out, `"valid": 2`)
}

func Test_UploadMultipleFiles(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rc, out := run(t, "upload",
		"--in", writeLDIF(t, dir, "DE"),
		"--in", writeLDIF(t, dir, "FR"))
	require.Equal(t, ctl.RCOkay, rc)
	assert.Contains(t, out, `"valid": 2`)
}

func Test_UploadBadFormat(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rc, _ := run(t, "upload", "--in", writeLDIF(t, dir, "DE"), "--format", "bogus")
	assert.Equal(t, ctl.RCFailed, rc)
}

func Test_UploadMissingFile(t *testing.T) {
	rc, _ := run(t, "upload", "--in", "/no/such/file.ldif")
	assert.Equal(t, ctl.RCFailed, rc)
}

func Test_Status(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rc, out := run(t, "status", "--in", writeLDIF(t, dir, "NL"))
	require.Equal(t, ctl.RCOkay, rc)
	assert.Contains(t, out, `"NL"`)
}

func Test_Verify(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	csca := testmrtd.NewCSCA("UT")
	dsc := csca.IssueDSC()
	ldif := testmrtd.BuildLDIF(
		testmrtd.CertEntry(testmrtd.EntryDN("CSCA-UT", "csca", "UT"), csca.Certificate.Raw),
	)
	trustFile := filepath.Join(dir, "trust.ldif")
	require.NoError(t, ioutil.WriteFile(trustFile, ldif, 0644))

	dg1 := tlv([]byte{0x61}, tlv([]byte{0x5F, 0x1F}, []byte(specimenMRZ)))
	sod := testmrtd.BuildSOD(dsc, map[int][]byte{1: dg1})
	sodFile := filepath.Join(dir, "sod.bin")
	require.NoError(t, ioutil.WriteFile(sodFile, sod, 0644))
	dg1File := filepath.Join(dir, "dg1.bin")
	require.NoError(t, ioutil.WriteFile(dg1File, dg1, 0644))

	rc, out := run(t, "verify",
		"--sod", sodFile,
		"--dg1", dg1File,
		"--trust", trustFile)
	require.Equal(t, ctl.RCOkay, rc)
	assert.Contains(t, out, `"overall_status": "VALID"`)
}

func Test_DG1(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkdctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	rc, out := run(t, "dg", "dg1", "--in", writeDG1(t, dir), "--verify")
	require.Equal(t, ctl.RCOkay, rc)
	assert.Contains(t, out, "ERIKSSON")
	assert.Contains(t, out, "L898902C3")
}

func Test_DG1Missing(t *testing.T) {
	rc, _ := run(t, "dg", "dg1", "--in", "/no/such/dg1.bin")
	assert.Equal(t, ctl.RCFailed, rc)
}
