package logger

import (
	"fmt"
	"strings"
)

// maxFieldRunes caps how much of a client-supplied value reaches the log.
const maxFieldRunes = 256

// SanitizeForLog escapes control characters in client-supplied strings
// (declared filenames, hashes) so they cannot forge log lines or drive the
// terminal. Printable Unicode is kept. Values longer than maxFieldRunes are
// cut and marked with "...".
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	count := 0
	for _, r := range s {
		if count == maxFieldRunes {
			result.WriteString("...")
			break
		}
		count++

		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}
