package xlog

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"
)

// Formatter defines an interface for formatting log entries
type Formatter interface {
	// Format writes a log entry; the entries are separated by space
	Format(pkg string, level LogLevel, depth int, entries ...interface{})
	// FormatKV writes a log entry from key/value pairs
	FormatKV(pkg string, level LogLevel, depth int, entries ...interface{})
	// Flush the pending output
	Flush()
}

// NewStringFormatter returns a plain machine-readable formatter:
// time=<RFC3339> level=<L> pkg=<pkg> src=<caller> <entries>
func NewStringFormatter(w io.Writer) Formatter {
	return &StringFormatter{w: bufio.NewWriter(w)}
}

// StringFormatter writes single-line entries
type StringFormatter struct {
	w *bufio.Writer
}

// Format writes a log entry
func (s *StringFormatter) Format(pkg string, l LogLevel, depth int, entries ...interface{}) {
	now := time.Now().UTC()
	s.w.WriteString("time=")
	s.w.WriteString(now.Format(time.RFC3339))
	s.w.WriteString(", level=")
	s.w.WriteString(l.Char())
	writeEntries(s.w, pkg, depth+1, entries...)
	s.Flush()
}

// FormatKV writes a log entry from key/value pairs
func (s *StringFormatter) FormatKV(pkg string, l LogLevel, depth int, entries ...interface{}) {
	s.Format(pkg, l, depth+1, flatten(entries...))
}

// Flush the pending output
func (s *StringFormatter) Flush() {
	s.w.Flush()
}

// NewPrettyFormatter returns a human-oriented formatter with
// millisecond timestamps, for console output
func NewPrettyFormatter(w io.Writer) Formatter {
	return &PrettyFormatter{w: bufio.NewWriter(w)}
}

// PrettyFormatter writes entries for console consumption
type PrettyFormatter struct {
	w *bufio.Writer
}

// Format writes a log entry
func (c *PrettyFormatter) Format(pkg string, l LogLevel, depth int, entries ...interface{}) {
	now := time.Now()
	ts := now.Format("2006-01-02 15:04:05")
	c.w.WriteString(fmt.Sprintf("%s.%06d %s | ", ts, now.Nanosecond()/1000, l.Char()))
	writeEntries(c.w, pkg, depth+1, entries...)
	c.Flush()
}

// FormatKV writes a log entry from key/value pairs
func (c *PrettyFormatter) FormatKV(pkg string, l LogLevel, depth int, entries ...interface{}) {
	c.Format(pkg, l, depth+1, flatten(entries...))
}

// Flush the pending output
func (c *PrettyFormatter) Flush() {
	c.w.Flush()
}

// NewNilFormatter returns a formatter that discards everything
func NewNilFormatter() Formatter {
	return &NilFormatter{}
}

// NilFormatter discards all entries
type NilFormatter struct{}

// Format does nothing
func (*NilFormatter) Format(pkg string, level LogLevel, depth int, entries ...interface{}) {}

// FormatKV does nothing
func (*NilFormatter) FormatKV(pkg string, level LogLevel, depth int, entries ...interface{}) {}

// Flush does nothing
func (*NilFormatter) Flush() {}

func writeEntries(w *bufio.Writer, pkg string, depth int, entries ...interface{}) {
	if pkg != "" {
		w.WriteString(", pkg=" + pkg)
	}
	w.WriteString(", src=")
	w.WriteString(callerName(depth + 1))
	w.WriteString(", ")

	str := fmt.Sprint(entries...)
	w.WriteString(str)
	if !strings.HasSuffix(str, "\n") {
		w.WriteString("\n")
	}
}

func callerName(depth int) string {
	pc, _, line, ok := runtime.Caller(depth)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return fmt.Sprintf("%s:%d", name, line)
}

func flatten(kvList ...interface{}) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kvList); i += 2 {
		if i > 0 {
			sb.WriteString(", ")
		}
		k, ok := kvList[i].(string)
		if !ok {
			k = fmt.Sprint(kvList[i])
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		switch v := kvList[i+1].(type) {
		case string:
			if strings.ContainsAny(v, " ,=") {
				sb.WriteString(fmt.Sprintf("%q", v))
			} else {
				sb.WriteString(v)
			}
		default:
			sb.WriteString(fmt.Sprint(v))
		}
	}
	return sb.String()
}
