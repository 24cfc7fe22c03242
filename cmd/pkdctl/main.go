// Command pkdctl is a command-line utility for ingesting, publishing
// and verifying eMRTD PKD artifacts.
package main

import (
	"os"

	"github.com/go-phorce/pkd/cmd/pkdctl/pkg"
)

func main() {
	// Logs are set to os.Stderr, while output to os.Stdout
	rc := pkg.ParseAndRun("pkdctl", os.Args, os.Stdout)
	os.Exit(int(rc))
}
