// Package config loads the PKD runtime configuration from a YAML or
// JSON file and overlays it on compiled-in defaults.
package config

import (
	"encoding/json"
	"io/ioutil"
	"runtime"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

var (
	// DefaultBatchSize specifies default trust-store batch size
	DefaultBatchSize = 1000
	// DefaultDirectoryBatchSize specifies default LDAP publication batch size
	DefaultDirectoryBatchSize = 100
	// DefaultClockSkewTolerance specifies default validity-check skew
	DefaultClockSkewTolerance = 5 * time.Minute
	// DefaultCallTimeout specifies default timeout for store and directory calls
	DefaultCallTimeout = 30 * time.Second
	// DefaultCSCACacheMaxBytes specifies default CSCA cache budget
	DefaultCSCACacheMaxBytes = 10 * 1024 * 1024

	// DefaultAllowedAlgorithms specifies the digest algorithms accepted
	// in SOD security objects
	DefaultAllowedAlgorithms = []string{"SHA1", "SHA224", "SHA256", "SHA384", "SHA512"}
)

// Config provides configuration for the PKD core
type Config struct {
	// BatchSize specifies the number of entities per trust-store write
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	// Workers specifies the ingest worker pool size; 0 means 2 x NumCPU
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// ClockSkewTolerance is applied on both validity bounds
	ClockSkewTolerance Duration `json:"clock_skew_tolerance,omitempty" yaml:"clock_skew_tolerance,omitempty"`

	// CallTimeout bounds each trust-store and directory call
	CallTimeout Duration `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`

	// CSCACacheMaxBytes caps the validator's in-memory CSCA cache
	CSCACacheMaxBytes int `json:"csca_cache_max_bytes,omitempty" yaml:"csca_cache_max_bytes,omitempty"`

	// MasterListTrustAnchor specifies a PEM bundle of certificates
	// trusted to sign CSCA Master Lists; when empty the master list
	// CMS signature is not verified and a warning is recorded
	MasterListTrustAnchor string `json:"master_list_trust_anchor,omitempty" yaml:"master_list_trust_anchor,omitempty"`

	// StrictCRLMode fails passive authentication when no CRL is
	// available for the DSC issuer
	StrictCRLMode bool `json:"strict_crl_mode,omitempty" yaml:"strict_crl_mode,omitempty"`

	// AllowedAlgorithms lists the digest algorithms accepted in SOD
	// security objects; resolved at engine construction
	AllowedAlgorithms []string `json:"allowed_algorithms,omitempty" yaml:"allowed_algorithms,omitempty"`

	// VerifyMRZCheckDigits enables ICAO check-digit verification on DG1
	VerifyMRZCheckDigits bool `json:"verify_mrz_check_digits,omitempty" yaml:"verify_mrz_check_digits,omitempty"`

	// Directory specifies the LDAP publication target
	Directory DirectoryConfig `json:"directory,omitempty" yaml:"directory,omitempty"`

	// Audit specifies the operator audit log sink
	Audit AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`

	// Metrics specifies the metrics provider
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// DirectoryConfig contains configuration for the LDAP directory
type DirectoryConfig struct {
	// URL specifies the directory address, e.g. ldap://localhost:1389
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// BaseDN specifies the publication suffix, e.g. dc=pkd,dc=local
	BaseDN string `json:"base_dn,omitempty" yaml:"base_dn,omitempty"`

	// BindDN and Password authenticate the publisher
	BindDN   string `json:"bind_dn,omitempty" yaml:"bind_dn,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// BatchSize specifies the number of entries per publication batch
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// AuditConfig contains configuration for the file audit sink
type AuditConfig struct {
	// Directory specifies the folder for audit log files
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`

	// MaxAgeDays and MaxSizeMb bound log rotation
	MaxAgeDays int `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
	MaxSizeMb  int `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
}

// MetricsConfig contains configuration for the metrics provider
type MetricsConfig struct {
	// Provider specifies: prometheus|datadog|inmem
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Datadog specifies the dogstatsd address
	Datadog string `json:"datadog,omitempty" yaml:"datadog,omitempty"`

	// Prefix is prepended to every metric name
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Copy returns new copy
func (c *Config) Copy() *Config {
	d := new(Config)
	copier.Copy(d, c)
	return d
}

// GetBatchSize returns the configured or default store batch size
func (c *Config) GetBatchSize() int {
	if c != nil && c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// GetWorkers returns the configured or default worker pool size
func (c *Config) GetWorkers() int {
	if c != nil && c.Workers > 0 {
		return c.Workers
	}
	return 2 * runtime.NumCPU()
}

// GetClockSkewTolerance returns the configured or default skew
func (c *Config) GetClockSkewTolerance() time.Duration {
	if c != nil && c.ClockSkewTolerance > 0 {
		return c.ClockSkewTolerance.TimeDuration()
	}
	return DefaultClockSkewTolerance
}

// GetCallTimeout returns the configured or default call timeout
func (c *Config) GetCallTimeout() time.Duration {
	if c != nil && c.CallTimeout > 0 {
		return c.CallTimeout.TimeDuration()
	}
	return DefaultCallTimeout
}

// GetCSCACacheMaxBytes returns the configured or default cache budget
func (c *Config) GetCSCACacheMaxBytes() int {
	if c != nil && c.CSCACacheMaxBytes > 0 {
		return c.CSCACacheMaxBytes
	}
	return DefaultCSCACacheMaxBytes
}

// GetAllowedAlgorithms returns the configured or default digest allow-list
func (c *Config) GetAllowedAlgorithms() []string {
	if c != nil && len(c.AllowedAlgorithms) > 0 {
		return c.AllowedAlgorithms
	}
	return DefaultAllowedAlgorithms
}

// GetBatchSize returns the configured or default directory batch size
func (c *DirectoryConfig) GetBatchSize() int {
	if c != nil && c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultDirectoryBatchSize
}

// LoadConfig loads the configuration file stored at the path
// and returns the configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("invalid path")
	}

	body, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "unable to read configuration file")
	}

	var cfg = new(Config)
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(body, cfg)
	} else {
		err = yaml.Unmarshal(body, cfg)
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to unmarshal configuration")
	}

	return cfg, nil
}
