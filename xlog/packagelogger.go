package xlog

import (
	"fmt"
	"os"
	"sync/atomic"
)

// PackageLogger is the Logger implementation bound to one package
type PackageLogger struct {
	pkg   string
	level int32
}

const calldepth = 2

func (p *PackageLogger) setLevel(l LogLevel) {
	atomic.StoreInt32(&p.level, int32(l))
}

// LevelAt returns true if the logger emits at the given level
func (p *PackageLogger) LevelAt(l LogLevel) bool {
	return LogLevel(atomic.LoadInt32(&p.level)) >= l
}

func (p *PackageLogger) log(depth int, l LogLevel, entries ...interface{}) {
	if l != CRITICAL && !p.LevelAt(l) {
		return
	}
	logger.Lock()
	defer logger.Unlock()
	if logger.formatter != nil {
		logger.formatter.Format(p.pkg, l, depth+1, entries...)
	}
}

func (p *PackageLogger) logf(depth int, l LogLevel, format string, args ...interface{}) {
	p.log(depth+1, l, fmt.Sprintf(format, args...))
}

// KV logs entries as "key1=value1, ..., keyN=valueN"
func (p *PackageLogger) KV(l LogLevel, entries ...interface{}) {
	if l != CRITICAL && !p.LevelAt(l) {
		return
	}
	logger.Lock()
	defer logger.Unlock()
	if logger.formatter != nil {
		logger.formatter.FormatKV(p.pkg, l, calldepth+1, entries...)
	}
}

// Panicf logs at CRITICAL and panics
func (p *PackageLogger) Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	p.log(calldepth, CRITICAL, s)
	panic(s)
}

// Panic logs at CRITICAL and panics
func (p *PackageLogger) Panic(args ...interface{}) {
	s := fmt.Sprint(args...)
	p.log(calldepth, CRITICAL, s)
	panic(s)
}

// Fatalf logs at CRITICAL and exits
func (p *PackageLogger) Fatalf(format string, args ...interface{}) {
	p.logf(calldepth, CRITICAL, format, args...)
	os.Exit(1)
}

// Fatal logs at CRITICAL and exits
func (p *PackageLogger) Fatal(args ...interface{}) {
	p.log(calldepth, CRITICAL, fmt.Sprint(args...))
	os.Exit(1)
}

// Errorf logs at ERROR
func (p *PackageLogger) Errorf(format string, args ...interface{}) {
	p.logf(calldepth, ERROR, format, args...)
}

// Error logs at ERROR
func (p *PackageLogger) Error(entries ...interface{}) {
	p.log(calldepth, ERROR, entries...)
}

// Warningf logs at WARNING
func (p *PackageLogger) Warningf(format string, args ...interface{}) {
	p.logf(calldepth, WARNING, format, args...)
}

// Warning logs at WARNING
func (p *PackageLogger) Warning(entries ...interface{}) {
	p.log(calldepth, WARNING, entries...)
}

// Noticef logs at NOTICE
func (p *PackageLogger) Noticef(format string, args ...interface{}) {
	p.logf(calldepth, NOTICE, format, args...)
}

// Notice logs at NOTICE
func (p *PackageLogger) Notice(entries ...interface{}) {
	p.log(calldepth, NOTICE, entries...)
}

// Infof logs at INFO
func (p *PackageLogger) Infof(format string, args ...interface{}) {
	p.logf(calldepth, INFO, format, args...)
}

// Info logs at INFO
func (p *PackageLogger) Info(entries ...interface{}) {
	p.log(calldepth, INFO, entries...)
}

// Debugf logs at DEBUG
func (p *PackageLogger) Debugf(format string, args ...interface{}) {
	p.logf(calldepth, DEBUG, format, args...)
}

// Debug logs at DEBUG
func (p *PackageLogger) Debug(entries ...interface{}) {
	p.log(calldepth, DEBUG, entries...)
}

// Tracef logs at TRACE
func (p *PackageLogger) Tracef(format string, args ...interface{}) {
	p.logf(calldepth, TRACE, format, args...)
}

// Trace logs at TRACE
func (p *PackageLogger) Trace(entries ...interface{}) {
	p.log(calldepth, TRACE, entries...)
}
