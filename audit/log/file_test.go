package log_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-phorce/pkd/audit"
	"github.com/go-phorce/pkd/audit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FileAuditor(t *testing.T) {
	dir, err := ioutil.TempDir("", "audit")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	a, err := log.New("pkd_audit.log", dir, 7, 10)
	require.NoError(t, err)

	a.Audit(audit.SourceIngest, audit.EventUploadParsed, "operator/bob", "ctx-1", 10, "parsed upload")
	a.Audit(audit.SourcePA, audit.EventPACompleted, "inspector/alice", "ctx-2", 0, "status VALID")
	require.NoError(t, a.Close())

	raw, err := ioutil.ReadFile(filepath.Join(dir, "pkd_audit.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ingest:upload_parsed:operator/bob:ctx-1:10:parsed upload")
	assert.Contains(t, lines[1], "pa:pa_completed:inspector/alice:ctx-2:0:status VALID")
}

func Test_FileAuditorBadDirectory(t *testing.T) {
	_, err := log.New("pkd_audit.log", "/dev/null/not-a-dir", 1, 1)
	require.Error(t, err)
}
