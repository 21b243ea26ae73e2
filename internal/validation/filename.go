// Package validation normalizes client-supplied names and parameters.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the common filesystem limit, in bytes.
const maxFilenameLength = 255

// replaced holds the characters that may split a path, break a quoted
// header value or inject a header line.
var replaced = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'\n': true,
	'\r': true,
}

// SanitizeFilename turns a declared upload name into a single safe path
// element. Unsafe and control characters become '_', Unicode is kept, the
// result is capped at 255 bytes with its extension preserved, and empty or
// meaningless names become "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		if r < 32 || r == 127 || replaced[r] {
			sb.WriteRune('_')
			continue
		}
		sb.WriteRune(r)
	}

	result := strings.TrimSpace(sb.String())
	if strings.Trim(result, "_.") == "" {
		return "file"
	}

	if len(result) > maxFilenameLength {
		result = truncateKeepingExt(result)
	}
	return result
}

func truncateKeepingExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxFilenameLength {
		return truncateBytes(name, maxFilenameLength)
	}
	base := strings.TrimSuffix(name, ext)
	return truncateBytes(base, maxFilenameLength-len(ext)) + ext
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ContentDisposition builds a header value that offers the file under its
// sanitized original name.
func ContentDisposition(filename string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(filename))
}
