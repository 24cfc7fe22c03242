// Package cli provides common code for building a command line control for the PKD core
package cli

import (
	"context"
	"io/ioutil"
	"os"
	"time"

	"github.com/juju/errors"

	"github.com/go-phorce/pkd/audit"
	auditlog "github.com/go-phorce/pkd/audit/log"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/dg"
	"github.com/go-phorce/pkd/pkd/ingest"
	"github.com/go-phorce/pkd/pkd/pa"
	"github.com/go-phorce/pkd/pkd/parser"
	"github.com/go-phorce/pkd/pkd/publisher"
	"github.com/go-phorce/pkd/pkd/truststore/inmem"
	"github.com/go-phorce/pkd/pkd/validator"
)

// ReturnCode is the type that your command returns, these map to standard process return codes
type ReturnCode ctl.ReturnCode

// Cli is a project specific wrapper over ctl.Ctl
type Cli struct {
	*ctl.Ctl

	flags struct {
		// cfgFile specifies the PKD configuration file
		cfgFile *string
		// ldapURL overrides the directory address from the configuration
		ldapURL *string
	}

	cfg       *config.Config
	store     *inmem.Provider
	processor *ingest.Processor
	engine    *pa.Engine
	auditor   audit.Auditor
	directory publisher.Directory
}

// New creates an instance of CLI
func New(d *ctl.ControlDefinition) *Cli {
	cli := &Cli{
		Ctl: ctl.NewControl(d),
	}

	cli.flags.cfgFile = d.App.Flag("cfg", "PKD configuration file").String()
	cli.flags.ldapURL = d.App.Flag("ldap-url", "override the directory address from the configuration").String()

	return cli
}

// RegisterAction creates a new Control action that receives this Cli
func (cli *Cli) RegisterAction(f ctl.ControlAction, params interface{}) ctl.Action {
	return func() error {
		err := f(cli, params)
		if err != nil {
			return cli.Fail("action failed", err)
		}
		return nil
	}
}

// Config returns the loaded configuration
func (cli *Cli) Config() *config.Config {
	if cli == nil || cli.cfg == nil {
		panic("use PopulateControl() in App settings")
	}
	return cli.cfg
}

// Store returns the trust store backing this invocation
func (cli *Cli) Store() *inmem.Provider {
	if cli == nil || cli.store == nil {
		panic("use EnsureProcessor() in App settings")
	}
	return cli.store
}

// Processor returns the ingest pipeline
func (cli *Cli) Processor() *ingest.Processor {
	if cli == nil || cli.processor == nil {
		panic("use EnsureProcessor() in App settings")
	}
	return cli.processor
}

// Engine returns the passive authentication engine
func (cli *Cli) Engine() *pa.Engine {
	if cli == nil || cli.engine == nil {
		panic("use EnsureProcessor() in App settings")
	}
	return cli.engine
}

// Auditor returns the operator audit sink, nil when not configured
func (cli *Cli) Auditor() audit.Auditor {
	return cli.auditor
}

// Context returns the invocation context bounded by the configured call timeout
func (cli *Cli) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cli.Config().GetCallTimeout())
}

// PopulateControl is a pre-action to load the configuration
func (cli *Cli) PopulateControl() error {
	if cli.cfg != nil {
		return nil
	}
	if *cli.flags.cfgFile == "" {
		cli.cfg = new(config.Config)
	} else {
		cfg, err := config.LoadConfig(*cli.flags.cfgFile)
		if err != nil {
			return errors.Annotate(err, "unable to load configuration")
		}
		cli.cfg = cfg
	}
	if *cli.flags.ldapURL != "" {
		cli.cfg.Directory.URL = *cli.flags.ldapURL
	}
	return cli.startMetrics()
}

// EnsureProcessor is a pre-action to construct the store and the pipeline
func (cli *Cli) EnsureProcessor() error {
	if cli.processor != nil {
		return nil
	}

	cfg := cli.Config()
	cli.store = inmem.NewProvider()

	p, err := parser.New(cli.store.Certs(), cfg)
	if err != nil {
		return errors.Annotate(err, "unable to create parser")
	}
	v := validator.New(cli.store.Certs(), cli.store.CRLs(), cli.store.Audit(), cfg)

	if cfg.Audit.Directory != "" {
		cli.auditor, err = auditlog.New("pkd_audit.log", cfg.Audit.Directory, cfg.Audit.MaxAgeDays, cfg.Audit.MaxSizeMb)
		if err != nil {
			return errors.Annotate(err, "unable to create audit sink")
		}
	}

	var pub *publisher.Publisher
	if cli.directory != nil {
		pub = publisher.New(cli.store.Certs(), cli.store.CRLs(), cli.directory, cfg)
	}

	cli.processor = ingest.New(p, v, pub, cli.auditor, cfg)
	cli.engine, err = pa.New(cli.store.Certs(), cli.store.CRLs(), cli.store.Invocations(), cfg)
	if err != nil {
		return errors.Annotate(err, "unable to create verification engine")
	}
	return nil
}

// EnsureDirectory is a pre-action to connect the LDAP directory;
// it must run before EnsureProcessor
func (cli *Cli) EnsureDirectory() error {
	if cli.directory != nil {
		return nil
	}
	cfg := cli.Config()
	if cfg.Directory.URL == "" {
		return errors.New("use --ldap-url flag or the directory section of the configuration")
	}
	dir, err := publisher.Connect(&cfg.Directory)
	if err != nil {
		return errors.Annotate(err, "unable to connect to the directory")
	}
	cli.directory = dir
	return nil
}

// WithDirectory allows tests to inject a directory client
func (cli *Cli) WithDirectory(dir publisher.Directory) *Cli {
	cli.directory = dir
	return cli
}

// Close releases the directory connection and the audit sink
func (cli *Cli) Close() error {
	if cli.auditor != nil {
		cli.auditor.Close()
	}
	if cli.directory != nil {
		return cli.directory.Close()
	}
	return nil
}

func (cli *Cli) startMetrics() error {
	mc := cli.cfg.Metrics
	if mc.Provider == "" {
		return nil
	}

	var sink metrics.Sink
	var err error
	switch mc.Provider {
	case "prometheus":
		sink, err = metrics.NewPrometheusSink()
	case "datadog":
		sink, err = metrics.NewDogStatsdSink(mc.Datadog, "")
	case "inmem":
		sink = metrics.NewInmemSink(time.Second, time.Minute)
	default:
		return errors.Errorf("unsupported metrics provider: %s", mc.Provider)
	}
	if err != nil {
		return errors.Annotate(err, "unable to create metrics sink")
	}

	prefix := mc.Prefix
	if prefix == "" {
		prefix = "pkdctl"
	}
	_, err = metrics.NewGlobal(metrics.DefaultConfig(prefix), sink)
	return errors.Trace(err)
}

// ReadFile reads from stdin if the file is "-"
func ReadFile(filename string) ([]byte, error) {
	if filename == "" {
		return nil, errors.New("invalid file name")
	}
	if filename == "-" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(filename)
}

// MRZFromFile parses DG1 bytes stored in the file
func MRZFromFile(filename string, verify bool) (*dg.MRZ, error) {
	raw, err := ReadFile(filename)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return dg.ParseDG1(raw, verify)
}
