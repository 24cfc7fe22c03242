package pkg

import (
	"io"

	"github.com/go-phorce/pkd/cmd/pkdctl/cli"
	"github.com/go-phorce/pkd/cmd/pkdctl/mrtd"
	"github.com/go-phorce/pkd/cmd/pkdctl/trust"
	"github.com/go-phorce/pkd/ctl"
	"github.com/go-phorce/pkd/pkd/model"
)

// ParseAndRun will parse parameters and execute the command
func ParseAndRun(cmdname string, args []string, out io.Writer) ctl.ReturnCode {
	app := ctl.NewApplication(cmdname, "command-line utility for the local eMRTD public key directory")
	app.UsageWriter(out)

	cli := cli.New(&ctl.ControlDefinition{
		App:    app,
		Output: out,
	})
	defer cli.Close()

	// upload --in <file> [--in <file>] [--format] [--identity]
	uploadFlags := new(trust.UploadFlags)
	cmdUpload := app.Command("upload", "Parse and validate PKD files into the trust store").
		PreAction(cli.PopulateControl).
		PreAction(cli.EnsureProcessor).
		Action(cli.RegisterAction(trust.Upload, uploadFlags))
	uploadFlags.Files = new(ctl.FilesList)
	cmdUpload.Flag("in", "PKD file to process, repeatable").Required().SetValue(uploadFlags.Files)
	uploadFlags.Format = cmdUpload.Flag("format", "file format").Default(model.EmrtdCompleteLdif.String()).String()
	uploadFlags.Identity = cmdUpload.Flag("identity", "operator identity for the audit trail").Default("operator/local").String()

	// publish --in <file> [--format] [--identity] [--yes]
	publishFlags := new(trust.PublishFlags)
	cmdPublish := app.Command("publish", "Parse, validate and publish PKD files to the directory").
		PreAction(cli.PopulateControl).
		PreAction(cli.EnsureDirectory).
		PreAction(cli.EnsureProcessor).
		Action(cli.RegisterAction(trust.Publish, publishFlags))
	publishFlags.Files = new(ctl.FilesList)
	cmdPublish.Flag("in", "PKD file to process, repeatable").Required().SetValue(publishFlags.Files)
	publishFlags.Format = cmdPublish.Flag("format", "file format").Default(model.EmrtdCompleteLdif.String()).String()
	publishFlags.Identity = cmdPublish.Flag("identity", "operator identity for the audit trail").Default("operator/local").String()
	publishFlags.Yes = cmdPublish.Flag("yes", "do not ask for confirmation").Bool()

	// status --in <file>
	statusFlags := new(trust.StatusFlags)
	cmdStatus := app.Command("status", "Show the per-country census of the ingested PKD files").
		PreAction(cli.PopulateControl).
		PreAction(cli.EnsureProcessor).
		Action(cli.RegisterAction(trust.Status, statusFlags))
	statusFlags.Files = new(ctl.FilesList)
	cmdStatus.Flag("in", "PKD file to process, repeatable").Required().SetValue(statusFlags.Files)
	statusFlags.Format = cmdStatus.Flag("format", "file format").Default(model.EmrtdCompleteLdif.String()).String()
	statusFlags.Identity = cmdStatus.Flag("identity", "operator identity for the audit trail").Default("operator/local").String()

	// verify --sod <file> [--dg1] [--dg2] --trust <file>
	verifyFlags := new(mrtd.VerifyFlags)
	cmdVerify := app.Command("verify", "Run passive authentication of a document against PKD files").
		PreAction(cli.PopulateControl).
		PreAction(cli.EnsureProcessor).
		Action(cli.RegisterAction(mrtd.Verify, verifyFlags))
	verifyFlags.Sod = cmdVerify.Flag("sod", "EF.SOD file").Required().String()
	verifyFlags.DG1 = cmdVerify.Flag("dg1", "DG1 file").String()
	verifyFlags.DG2 = cmdVerify.Flag("dg2", "DG2 file").String()
	verifyFlags.Trust = new(ctl.FilesList)
	cmdVerify.Flag("trust", "PKD file seeding the trust store, repeatable").Required().SetValue(verifyFlags.Trust)
	verifyFlags.TrustFormat = cmdVerify.Flag("trust-format", "format of the trust files").Default(model.EmrtdCompleteLdif.String()).String()
	verifyFlags.Country = cmdVerify.Flag("country", "expected issuing country").String()
	verifyFlags.DocNumber = cmdVerify.Flag("doc", "expected document number").String()

	// dg dg1|dg2
	cmdDg := app.Command("dg", "Parse document data groups").
		PreAction(cli.PopulateControl)

	dg1Flags := new(mrtd.DG1Flags)
	cmdDg1 := cmdDg.Command("dg1", "Parse a TD3 MRZ from a DG1 file").
		Action(cli.RegisterAction(mrtd.DG1, dg1Flags))
	dg1Flags.In = cmdDg1.Flag("in", "DG1 file, use - for stdin").Required().String()
	dg1Flags.Verify = cmdDg1.Flag("verify", "verify ICAO check digits").Bool()

	dg2Flags := new(mrtd.DG2Flags)
	cmdDg2 := cmdDg.Command("dg2", "Extract face images from a DG2 file").
		Action(cli.RegisterAction(mrtd.DG2, dg2Flags))
	dg2Flags.In = cmdDg2.Flag("in", "DG2 file, use - for stdin").Required().String()
	dg2Flags.Out = cmdDg2.Flag("out", "directory to store extracted images").String()

	cli.Parse(args)
	return cli.ReturnCode()
}
