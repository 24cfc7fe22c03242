package parser

import (
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/xlog"
	"github.com/go-phorce/pkd/xpki/cms"
	"github.com/juju/errors"
)

// parseMasterList decodes a CMS-signed CSCA Master List. The CMS
// signature is checked only when trust anchors are configured, and a
// failure there records a warning rather than aborting: national
// master lists routinely carry signers outside any one anchor set.
func (p *Parser) parseMasterList(pf *model.ParsedFile, data []byte, locator string) ([]certCandidate, error) {
	sd, err := cms.ParseSignedData(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", model.CodeMasterListCmsParseError)
	}

	if len(p.anchors) > 0 {
		if err := p.verifyMasterListSigner(sd); err != nil {
			pf.AddError(model.CodeMasterListCmsParseError, locator,
				"master list signature not verified: "+err.Error())
			logger.KV(xlog.WARNING, "api", "parseMasterList", "locator", locator, "err", err.Error())
		}
	} else {
		logger.KV(xlog.DEBUG, "api", "parseMasterList", "locator", locator, "reason", "no_trust_anchor")
	}

	certs, err := cms.ParseMasterListContent(sd.Content)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", model.CodeMasterListCmsParseError)
	}

	pf.TotalEntries += len(certs)
	cands := make([]certCandidate, 0, len(certs))
	for _, cert := range certs {
		cands = append(cands, certCandidate{
			cert:     cert,
			certType: model.CertTypeCSCA,
			locator:  locator,
		})
	}
	return cands, nil
}

// verifyMasterListSigner checks the CMS signature and requires the
// signer certificate to be an anchor or directly issued by one
func (p *Parser) verifyMasterListSigner(sd *cms.SignedData) error {
	if len(sd.Signers) == 0 {
		return errors.New("no signers")
	}
	signer := sd.SignerCertificate(sd.Signers[0])
	if signer == nil {
		return errors.New("signer certificate not embedded")
	}
	if err := sd.VerifySigner(sd.Signers[0], signer); err != nil {
		return errors.Trace(err)
	}
	for _, anchor := range p.anchors {
		if string(anchor.Raw) == string(signer.Raw) {
			return nil
		}
		if err := signer.CheckSignatureFrom(anchor); err == nil {
			return nil
		}
	}
	return errors.New("signer not linked to a configured trust anchor")
}
