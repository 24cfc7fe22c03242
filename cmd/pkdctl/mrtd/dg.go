package mrtd

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/go-phorce/pkd/cmd/pkdctl/cli"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/pkd/dg"
)

// DG1Flags specifies flags for the dg1 action
type DG1Flags struct {
	// In specifies the DG1 file, use "-" for stdin
	In *string
	// Verify enables ICAO check-digit verification
	Verify *bool
}

// DG1 parses a TD3 MRZ from the DG1 file and prints the decoded fields
func DG1(c ctl.Control, p interface{}) error {
	flags := p.(*DG1Flags)

	mrz, err := cli.MRZFromFile(*flags.In, *flags.Verify)
	if err != nil {
		return errors.Trace(err)
	}
	return ctl.WriteJSON(c.Writer(), mrz)
}

// DG2Flags specifies flags for the dg2 action
type DG2Flags struct {
	// In specifies the DG2 file, use "-" for stdin
	In *string
	// Out specifies an optional directory to store extracted images
	Out *string
}

// DG2 extracts face images from the DG2 file
func DG2(c ctl.Control, p interface{}) error {
	flags := p.(*DG2Flags)

	raw, err := cli.ReadFile(*flags.In)
	if err != nil {
		return errors.Trace(err)
	}
	face, err := dg.ParseDG2(raw)
	if err != nil {
		return errors.Trace(err)
	}

	if *flags.Out != "" {
		for i, img := range face.FaceImages {
			name := filepath.Join(*flags.Out, fmt.Sprintf("face_%d.%s", i+1, imageExt(img.Format)))
			if err := ioutil.WriteFile(name, img.Bytes, 0644); err != nil {
				return errors.Annotatef(err, "unable to write %q", name)
			}
			fmt.Fprintf(c.Writer(), "wrote %s (%d bytes)\n", name, img.Size)
		}
	}
	return ctl.WriteJSON(c.Writer(), face)
}

func imageExt(format string) string {
	switch format {
	case dg.FormatJPEG:
		return "jpg"
	case dg.FormatJPEG2000:
		return "jp2"
	default:
		return "bin"
	}
}
