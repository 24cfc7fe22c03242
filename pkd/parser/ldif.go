package parser

import (
	"encoding/base64"
	"strings"

	"github.com/juju/errors"
)

// ldifEntry is one RFC 2849 record: a DN plus attribute values.
// Attribute names are lowercased with options retained, so
// "userCertificate;binary" keys as "usercertificate;binary".
type ldifEntry struct {
	DN    string
	attrs map[string][][]byte
}

// Value returns the first value of the attribute, looking up both the
// bare name and the ";binary" option form
func (e *ldifEntry) Value(name string) []byte {
	name = strings.ToLower(name)
	if vals := e.attrs[name]; len(vals) > 0 {
		return vals[0]
	}
	if vals := e.attrs[name+";binary"]; len(vals) > 0 {
		return vals[0]
	}
	return nil
}

// Has reports whether the entry carries the attribute in any form
func (e *ldifEntry) Has(name string) bool {
	return e.Value(name) != nil
}

// splitLdifLines splits the input into logical LDIF lines: physical
// lines joined on the continuation convention (leading space), with
// CRLF, LF and bare CR endings all accepted
func splitLdifLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	physical := strings.Split(text, "\n")

	var logical []string
	for _, line := range physical {
		if strings.HasPrefix(line, " ") && len(logical) > 0 {
			logical[len(logical)-1] += line[1:]
			continue
		}
		logical = append(logical, line)
	}
	return logical
}

// parseLdifEntries reads every record of an LDIF document. A record
// with unreadable framing fails the whole parse; everything inside a
// well-framed record is left to the caller to judge.
func parseLdifEntries(data []byte) ([]*ldifEntry, error) {
	var entries []*ldifEntry
	var cur *ldifEntry

	flush := func() {
		if cur != nil && cur.DN != "" {
			entries = append(entries, cur)
		}
		cur = nil
	}

	for i, line := range splitLdifLines(data) {
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		name, value, isBase64, err := parseLdifLine(line)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", i+1)
		}
		if strings.EqualFold(name, "version") {
			continue
		}

		var raw []byte
		if isBase64 {
			raw, err = base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d: invalid base64 value of %q", i+1, name)
			}
		} else {
			raw = []byte(value)
		}

		if strings.EqualFold(name, "dn") {
			flush()
			cur = &ldifEntry{DN: string(raw), attrs: map[string][][]byte{}}
			continue
		}
		if cur == nil {
			return nil, errors.Errorf("line %d: attribute %q before any dn", i+1, name)
		}
		key := strings.ToLower(name)
		cur.attrs[key] = append(cur.attrs[key], raw)
	}
	flush()
	return entries, nil
}

// parseLdifLine splits "attr: value" or "attr:: base64value"
func parseLdifLine(line string) (name, value string, isBase64 bool, err error) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false, errors.Errorf("malformed line: %q", truncate(line, 40))
	}
	name = strings.TrimSpace(line[:idx])
	rest := line[idx+1:]
	if strings.HasPrefix(rest, ":") {
		return name, strings.TrimSpace(rest[1:]), true, nil
	}
	return name, strings.TrimSpace(rest), false, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
