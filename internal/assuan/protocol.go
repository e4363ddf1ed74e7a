// Package assuan implements the pinentry side of the Assuan protocol
// spoken by gpg-agent over stdin and stdout.
package assuan

import (
	"strconv"
	"strings"
)

// Assuan error codes carry the gpg-error source in the high byte.
// Source 5 is pinentry.
const (
	errSourcePinentry = 5 << 24

	codeGeneral        = errSourcePinentry | 1
	codeCancelled      = errSourcePinentry | 99
	codeUnknownCommand = errSourcePinentry | 275
)

// Escape renders s safe for a single protocol line: percent, newline and
// carriage return are percent-encoded. The result is a byte slice, not a
// string, so callers escaping a secret can wipe it after the write.
func Escape(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for _, c := range s {
		switch c {
		case '%':
			out = append(out, "%25"...)
		case '\n':
			out = append(out, "%0A"...)
		case '\r':
			out = append(out, "%0D"...)
		default:
			out = append(out, c)
		}
	}
	return out
}

// Unescape decodes %XX sequences from an incoming argument. Malformed
// sequences are kept literally, matching lenient peer behavior.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// splitCommand separates a protocol line into its uppercase command and
// raw argument remainder.
func splitCommand(line string) (cmd, args string) {
	line = strings.TrimRight(line, "\r\n")
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return strings.ToUpper(line[:i]), strings.TrimSpace(line[i+1:])
	}
	return strings.ToUpper(line), ""
}
