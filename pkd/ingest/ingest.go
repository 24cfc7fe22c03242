// Package ingest orchestrates the upload pipeline: parse, validate,
// publish. A pool of workers drains an upload channel, one worker
// owning one upload end to end. Operator audit events for an upload
// are buffered and submitted only after the trust-store writes commit.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-phorce/pkd/audit"
	"github.com/go-phorce/pkd/metrics"
	"github.com/go-phorce/pkd/pkd/config"
	"github.com/go-phorce/pkd/pkd/model"
	"github.com/go-phorce/pkd/pkd/parser"
	"github.com/go-phorce/pkd/pkd/publisher"
	"github.com/go-phorce/pkd/pkd/validator"
	"github.com/go-phorce/pkd/xlog"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/pkd", "ingest")

// Upload is one file to run through the pipeline
type Upload struct {
	ID     uuid.UUID
	Data   []byte
	Format model.FileFormat

	// Identity and ContextID feed the operator audit trail
	Identity  string
	ContextID string
}

// Result is the outcome of one upload
type Result struct {
	UploadID  uuid.UUID           `json:"upload_id" codec:"upload_id"`
	Parsed    int                 `json:"parsed" codec:"parsed"`
	Errors    int                 `json:"errors" codec:"errors"`
	Validated *validator.Response `json:"validated,omitempty" codec:"validated"`
	Published *publisher.Response `json:"published,omitempty" codec:"published"`

	Err error `json:"-" codec:"-"`
}

// Processor runs the upload pipeline
type Processor struct {
	parser    *parser.Parser
	validator *validator.Validator
	publisher *publisher.Publisher
	auditor   audit.Auditor
	workers   int
}

// New returns a Processor; publisher may be nil when no directory is
// configured, in which case the publish stage is skipped
func New(p *parser.Parser, v *validator.Validator, pub *publisher.Publisher, auditor audit.Auditor, cfg *config.Config) *Processor {
	return &Processor{
		parser:    p,
		validator: v,
		publisher: pub,
		auditor:   auditor,
		workers:   cfg.GetWorkers(),
	}
}

// Process runs one upload end to end
func (p *Processor) Process(ctx context.Context, up *Upload) (*Result, error) {
	started := time.Now()
	defer metrics.MeasureSince([]string{"ingest", "process"}, started)

	if up.ID == uuid.Nil {
		up.ID = uuid.New()
	}
	res := &Result{UploadID: up.ID}

	collector := audit.Collector{Destination: p.auditor}
	defer collector.Close()

	pf, err := p.parser.Parse(ctx, up.Data, up.Format, up.ID)
	if err != nil {
		p.failed(up, err)
		return nil, errors.Trace(err)
	}
	res.Parsed = pf.ProcessedEntries
	res.Errors = len(pf.Errors)
	collector.Audit(audit.SourceIngest, audit.EventUploadParsed, up.Identity, up.ContextID, 0,
		fmt.Sprintf("format=%s, entries=%d, errors=%d", up.Format, pf.ProcessedEntries, len(pf.Errors)))

	vres, err := p.validator.Validate(ctx, pf, nil)
	if err != nil {
		p.failed(up, err)
		return nil, errors.Trace(err)
	}
	res.Validated = vres
	collector.Audit(audit.SourceValidator, audit.EventUploadValidated, up.Identity, up.ContextID, 0,
		fmt.Sprintf("valid=%d, invalid=%d, duplicates=%d, crls=%d", vres.Valid, vres.Invalid, vres.Duplicates, vres.CRLs))

	if p.publisher != nil {
		pres, err := p.publisher.Publish(ctx, up.ID)
		if err != nil {
			p.failed(up, err)
			return nil, errors.Trace(err)
		}
		res.Published = pres
		collector.Audit(audit.SourcePublisher, audit.EventUploadPublished, up.Identity, up.ContextID, 0,
			fmt.Sprintf("uploaded=%d, skipped=%d, failed=%d", pres.Uploaded, pres.Skipped, pres.Failed))
	}

	if p.auditor != nil {
		collector.Submit(uint64(vres.Total))
	}
	logger.KV(xlog.INFO, "api", "Process",
		"upload", up.ID.String(),
		"parsed", res.Parsed,
		"ms", time.Since(started).Milliseconds())
	return res, nil
}

// Run drains the uploads channel with the configured worker pool and
// emits one Result per upload. The result channel closes when the
// input channel is drained or the context is cancelled.
func (p *Processor) Run(ctx context.Context, uploads <-chan *Upload) <-chan *Result {
	results := make(chan *Result)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-uploads:
					if !ok {
						return
					}
					res, err := p.Process(ctx, up)
					if err != nil {
						res = &Result{UploadID: up.ID, Err: err}
					}
					select {
					case results <- res:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func (p *Processor) failed(up *Upload, err error) {
	metrics.IncrCounter([]string{"ingest", "failed"}, 1)
	if p.auditor != nil {
		p.auditor.Audit(audit.SourceIngest, audit.EventUploadFailed, up.Identity, up.ContextID, 0, err.Error())
	}
}
