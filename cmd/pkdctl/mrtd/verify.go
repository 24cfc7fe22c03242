// Package mrtd implements the pkdctl commands that operate on
// document artifacts: passive authentication and DG parsing.
package mrtd

import (
	"github.com/juju/errors"

	"github.com/go-phorce/pkd/cmd/pkdctl/cli"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/pkd/ingest"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/pa"
)

// VerifyFlags specifies flags for the verify action
type VerifyFlags struct {
	// Sod specifies the EF.SOD file
	Sod *string
	// DG1 and DG2 specify data group files
	DG1 *string
	DG2 *string
	// Trust specifies the PKD files seeding the trust store
	Trust *ctl.FilesList
	// TrustFormat specifies the format of the trust files
	TrustFormat *string
	// Country specifies the expected issuing country
	Country *string
	// DocNumber specifies the expected document number
	DocNumber *string
}

// Verify runs passive authentication of the supplied SOD and data
// groups against a trust store seeded from the trust files
func Verify(c ctl.Control, p interface{}) error {
	flags := p.(*VerifyFlags)
	cl := c.(*cli.Cli)

	format := model.ParseFileFormat(*flags.TrustFormat)
	if format == model.FormatUnknown {
		return errors.Errorf("unsupported format: %q", *flags.TrustFormat)
	}
	if len(*flags.Trust) == 0 {
		return errors.New("use --trust flag to specify PKD file(s)")
	}

	ctx, cancel := cl.Context()
	defer cancel()

	for _, file := range *flags.Trust {
		data, err := cli.ReadFile(file)
		if err != nil {
			return errors.Annotatef(err, "unable to read %q", file)
		}
		if _, err = cl.Processor().Process(ctx, &ingest.Upload{Data: data, Format: format}); err != nil {
			return errors.Annotatef(err, "failed to process %q", file)
		}
	}

	sod, err := cli.ReadFile(*flags.Sod)
	if err != nil {
		return errors.Annotate(err, "unable to read SOD")
	}

	req := &pa.Request{
		SodBytes:       sod,
		DataGroups:     map[int][]byte{},
		IssuingCountry: *flags.Country,
		DocumentNumber: *flags.DocNumber,
	}
	if *flags.DG1 != "" {
		if req.DataGroups[1], err = cli.ReadFile(*flags.DG1); err != nil {
			return errors.Annotate(err, "unable to read DG1")
		}
	}
	if *flags.DG2 != "" {
		if req.DataGroups[2], err = cli.ReadFile(*flags.DG2); err != nil {
			return errors.Annotate(err, "unable to read DG2")
		}
	}

	inv, err := cl.Engine().AuthenticatePassport(ctx, req)
	if err != nil {
		return errors.Trace(err)
	}
	return ctl.WriteJSON(c.Writer(), inv)
}
