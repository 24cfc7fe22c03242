// Package trust implements the pkdctl commands that feed the trust
// store: upload, publish and status.
package trust

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/go-phorce/pkd/cmd/pkdctl/cli"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/pkd/ingest"
	"github.com/go-phorce/pkd/pkd/model"
)

// UploadFlags specifies flags for the upload action
type UploadFlags struct {
	// Files specifies PKD files to ingest
	Files *ctl.FilesList
	// Format specifies the file format name
	Format *string
	// Identity specifies the operator identity for the audit trail
	Identity *string
}

// Upload parses and validates the supplied PKD files
func Upload(c ctl.Control, p interface{}) error {
	flags := p.(*UploadFlags)
	results, err := run(c, flags)
	if err != nil {
		return errors.Trace(err)
	}
	return ctl.WriteJSON(c.Writer(), results)
}

// PublishFlags specifies flags for the publish action
type PublishFlags struct {
	UploadFlags

	// Yes skips the confirmation prompt
	Yes *bool
}

// Publish parses, validates and publishes the supplied PKD files
// to the configured directory
func Publish(c ctl.Control, p interface{}) error {
	flags := p.(*PublishFlags)
	cl := c.(*cli.Cli)

	if !*flags.Yes {
		prompt := fmt.Sprintf("Publish %d file(s) to %q", len(*flags.Files), cl.Config().Directory.URL)
		ok, err := ctl.AskForConfirmation(c.Writer(), c.Reader(), prompt)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			fmt.Fprintln(c.Writer(), "publication cancelled")
			return nil
		}
	}

	results, err := run(c, &flags.UploadFlags)
	if err != nil {
		return errors.Trace(err)
	}
	return ctl.WriteJSON(c.Writer(), results)
}

// run executes the pipeline; whether the publish stage is active is
// decided by the pre-actions that constructed the processor
func run(c ctl.Control, flags *UploadFlags) ([]*ingest.Result, error) {
	cl := c.(*cli.Cli)

	format := model.ParseFileFormat(*flags.Format)
	if format == model.FormatUnknown {
		return nil, errors.Errorf("unsupported format: %q", *flags.Format)
	}
	if len(*flags.Files) == 0 {
		return nil, errors.New("use --in flag to specify file(s) to process")
	}

	ctx, cancel := cl.Context()
	defer cancel()

	var results []*ingest.Result
	for _, file := range *flags.Files {
		data, err := cli.ReadFile(file)
		if err != nil {
			return nil, errors.Annotatef(err, "unable to read %q", file)
		}
		res, err := cl.Processor().Process(ctx, &ingest.Upload{
			Data:     data,
			Format:   format,
			Identity: *flags.Identity,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "failed to process %q", file)
		}
		results = append(results, res)
	}
	return results, nil
}
