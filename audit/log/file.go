// Package log provides an Auditor that appends events to rotated local
// files.
package log

import (
	"log"
	"os"
	"path/filepath"

	"github.com/go-phorce/pkd/audit"
	"github.com/juju/errors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// New returns an Auditor that writes audit entries to a local log file
// rotated by size and age
func New(fileprefix, directory string, maxAgeDays int, maxSizeMb int) (audit.Auditor, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Trace(err)
	}
	res := fileAuditor{
		fileWriter: lumberjack.Logger{
			Filename: filepath.Join(directory, fileprefix),
			MaxAge:   maxAgeDays,
			MaxSize:  maxSizeMb,
		},
	}
	res.logger = log.New(&res.fileWriter, "", log.Ldate|log.Ltime|log.LUTC)
	return &res, nil
}

type fileAuditor struct {
	fileWriter lumberjack.Logger
	logger     *log.Logger
}

func (f *fileAuditor) Close() error {
	return f.fileWriter.Close()
}

// Audit logs the event in the following format:
// {source}:{type}:{identity}:{contextID}:{entries}:{message}
func (f *fileAuditor) Audit(
	source string,
	eventType string,
	identity string,
	contextID string,
	entries uint64,
	message string) {
	f.logger.Printf("%s:%s:%s:%s:%d:%s\n",
		source, eventType, identity, contextID, entries, message)
}
