package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := new(Config)
	assert.Equal(t, DefaultBatchSize, cfg.GetBatchSize())
	assert.Equal(t, 2*runtime.NumCPU(), cfg.GetWorkers())
	assert.Equal(t, DefaultClockSkewTolerance, cfg.GetClockSkewTolerance())
	assert.Equal(t, DefaultCallTimeout, cfg.GetCallTimeout())
	assert.Equal(t, DefaultCSCACacheMaxBytes, cfg.GetCSCACacheMaxBytes())
	assert.Equal(t, 10*1024*1024, cfg.GetCSCACacheMaxBytes())
	assert.Equal(t, DefaultDirectoryBatchSize, cfg.Directory.GetBatchSize())
	assert.Equal(t, DefaultAllowedAlgorithms, cfg.GetAllowedAlgorithms())

	cfg.AllowedAlgorithms = []string{"SHA256"}
	assert.Equal(t, []string{"SHA256"}, cfg.GetAllowedAlgorithms())
}

func TestLoadConfigYAML(t *testing.T) {
	dir, err := ioutil.TempDir("", "pkd-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "pkd.yaml")
	body := `
batch_size: 250
workers: 4
clock_skew_tolerance: 2m
strict_crl_mode: true
directory:
  url: ldap://localhost:1389
  base_dn: dc=pkd,dc=local
  batch_size: 50
audit:
  directory: /tmp/audit
  max_age_days: 14
`
	require.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.GetBatchSize())
	assert.Equal(t, 4, cfg.GetWorkers())
	assert.Equal(t, 2*time.Minute, cfg.GetClockSkewTolerance())
	assert.True(t, cfg.StrictCRLMode)
	assert.Equal(t, "ldap://localhost:1389", cfg.Directory.URL)
	assert.Equal(t, 50, cfg.Directory.GetBatchSize())
	assert.Equal(t, 14, cfg.Audit.MaxAgeDays)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)

	_, err = LoadConfig("/not/there/pkd.yaml")
	require.Error(t, err)
}

func TestCopy(t *testing.T) {
	cfg := &Config{BatchSize: 10, Directory: DirectoryConfig{URL: "ldap://x"}}
	d := cfg.Copy()
	d.BatchSize = 99
	d.Directory.URL = "ldap://y"
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, "ldap://x", cfg.Directory.URL)
}
