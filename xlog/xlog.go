// Package xlog provides leveled, package-scoped loggers on top of a
// process-wide formatter. Each package creates its own logger with
// NewPackageLogger and the hosting process selects the output format
// and per-package levels.
package xlog

import (
	"os"
	"strings"
	"sync"
)

// LogLevel specifies the logging verbosity
type LogLevel int8

const (
	// CRITICAL level is always logged
	CRITICAL LogLevel = iota - 1
	// ERROR level
	ERROR
	// WARNING level
	WARNING
	// NOTICE level
	NOTICE
	// INFO level
	INFO
	// DEBUG level
	DEBUG
	// TRACE level
	TRACE
)

// Char returns a single character representation of the log level
func (l LogLevel) Char() string {
	switch l {
	case CRITICAL:
		return "C"
	case ERROR:
		return "E"
	case WARNING:
		return "W"
	case NOTICE:
		return "N"
	case INFO:
		return "I"
	case DEBUG:
		return "D"
	case TRACE:
		return "T"
	default:
		panic("unhandled log level")
	}
}

// String returns the name of the log level
func (l LogLevel) String() string {
	switch l {
	case CRITICAL:
		return "CRITICAL"
	case ERROR:
		return "ERROR"
	case WARNING:
		return "WARNING"
	case NOTICE:
		return "NOTICE"
	case INFO:
		return "INFO"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	default:
		panic("unhandled log level")
	}
}

// ParseLevel translates a level name to LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(s) {
	case "CRITICAL":
		return CRITICAL, nil
	case "ERROR":
		return ERROR, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "NOTICE":
		return NOTICE, nil
	case "INFO":
		return INFO, nil
	case "DEBUG":
		return DEBUG, nil
	case "TRACE":
		return TRACE, nil
	}
	return INFO, errInvalidLogLevel(s)
}

type errInvalidLogLevel string

func (e errInvalidLogLevel) Error() string {
	return "xlog: invalid log level: " + string(e)
}

// Logger is the interface for loggers used in the packages
type Logger interface {
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	Error(entries ...interface{})
	Errorf(format string, args ...interface{})

	Warning(entries ...interface{})
	Warningf(format string, args ...interface{})

	Notice(entries ...interface{})
	Noticef(format string, args ...interface{})

	Info(entries ...interface{})
	Infof(format string, args ...interface{})

	Debug(entries ...interface{})
	Debugf(format string, args ...interface{})

	Trace(entries ...interface{})
	Tracef(format string, args ...interface{})

	// KV logs entries in "key1=value1, ..., keyN=valueN" format
	KV(level LogLevel, entries ...interface{})
}

type loggerMap struct {
	sync.Mutex
	formatter Formatter
	level     LogLevel
	pkgs      map[string]*PackageLogger
}

var logger = &loggerMap{
	formatter: NewStringFormatter(os.Stderr),
	level:     INFO,
	pkgs:      map[string]*PackageLogger{},
}

// NewPackageLogger returns a logger scoped to repo/pkg. Repeated calls
// with the same pair return the same instance.
func NewPackageLogger(repo string, pkg string) Logger {
	logger.Lock()
	defer logger.Unlock()

	name := repo + "/" + pkg
	p, ok := logger.pkgs[name]
	if !ok {
		p = &PackageLogger{
			pkg:   pkg,
			level: int32(logger.level),
		}
		logger.pkgs[name] = p
	}
	return p
}

// SetFormatter sets the formatter for the process
func SetFormatter(f Formatter) {
	logger.Lock()
	defer logger.Unlock()
	logger.formatter = f
}

// GetFormatter returns the current formatter
func GetFormatter() Formatter {
	logger.Lock()
	defer logger.Unlock()
	return logger.formatter
}

// SetGlobalLogLevel sets the level on all registered package loggers
// and on loggers created afterwards
func SetGlobalLogLevel(l LogLevel) {
	logger.Lock()
	defer logger.Unlock()
	logger.level = l
	for _, p := range logger.pkgs {
		p.setLevel(l)
	}
}

// SetPackageLogLevel overrides the level of a single package logger;
// pkg is the short package name passed to NewPackageLogger
func SetPackageLogLevel(repo, pkg string, l LogLevel) {
	logger.Lock()
	defer logger.Unlock()
	if p, ok := logger.pkgs[repo+"/"+pkg]; ok {
		p.setLevel(l)
	}
}
