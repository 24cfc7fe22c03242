package publisher

import "strings"

// escapeDN escapes an RDN value per RFC 4514. The escape set includes
// '=' so that a full subject DN can be embedded as a single cn value.
func escapeDN(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i, r := range value {
		if (i == 0 || i == len(value)-1) && r == ' ' {
			b.WriteByte('\\')
			b.WriteRune(r)
			continue
		}
		if i == 0 && r == '#' {
			b.WriteByte('\\')
			b.WriteRune(r)
			continue
		}
		switch r {
		case ',', '+', '=', '<', '>', '"', ';', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\x00':
			b.WriteString("\\00")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
