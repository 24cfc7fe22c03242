package pa

import (
	"time"

	"github.com/go-phorce/pkd/pkd/model"
)

// Log levels of audit entries
const (
	levelInfo    = "INFO"
	levelWarning = "WARNING"
	levelError   = "ERROR"
)

// auditLog accumulates the append-only entries of one invocation;
// sequence numbers are gapless from 1
type auditLog struct {
	entries []model.AuditLogEntry
	seq     int
}

func (l *auditLog) append(e model.AuditLogEntry) {
	l.seq++
	e.Sequence = l.seq
	e.Timestamp = time.Now().UTC()
	l.entries = append(l.entries, e)
}

func (l *auditLog) started(step model.Step, phase string) {
	l.append(model.AuditLogEntry{
		Level:      levelInfo,
		Step:       step,
		StepStatus: model.StepStarted,
		Message:    phase,
	})
}

func (l *auditLog) completed(step model.Step, phase string, details map[string]interface{}) {
	l.append(model.AuditLogEntry{
		Level:      levelInfo,
		Step:       step,
		StepStatus: model.StepCompleted,
		Message:    phase,
		Details:    details,
	})
}

func (l *auditLog) progress(step model.Step, level, msg string, details map[string]interface{}, code model.ErrorCode) {
	l.append(model.AuditLogEntry{
		Level:      level,
		Step:       step,
		StepStatus: model.StepInProgress,
		Message:    msg,
		Details:    details,
		ErrorCode:  code,
	})
}

func (l *auditLog) failed(step model.Step, phase string, code model.ErrorCode, msg string, details map[string]interface{}) {
	l.append(model.AuditLogEntry{
		Level:        levelError,
		Step:         step,
		StepStatus:   model.StepFailed,
		Message:      phase,
		Details:      details,
		ErrorCode:    code,
		ErrorMessage: msg,
	})
}
