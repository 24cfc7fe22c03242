package trust

import (
	"github.com/juju/errors"

	"github.com/go-phorce/pkd/cmd/pkdctl/cli"
	"github.com/go-phorce/pkd/ctl"
)

// StatusFlags specifies flags for the status action
type StatusFlags struct {
	UploadFlags
}

// Status ingests the supplied PKD files and prints the per-country
// census of the resulting trust store
func Status(c ctl.Control, p interface{}) error {
	flags := p.(*StatusFlags)
	cl := c.(*cli.Cli)

	if _, err := run(c, &flags.UploadFlags); err != nil {
		return errors.Trace(err)
	}

	ctx, cancel := cl.Context()
	defer cancel()

	summary, err := cl.Store().CountByCountryAndType(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	return ctl.WriteJSON(c.Writer(), summary)
}
