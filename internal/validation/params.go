package validation

import (
	"errors"
	"strings"
)

var (
	ErrInvalidExt  = errors.New("invalid extension")
	ErrInvalidHash = errors.New("invalid content hash")
)

// HashLength is the hex length of a BLAKE2b-256 digest.
const HashLength = 64

// Ext normalizes a listing filter such as "png" or ".PNG" to ".png".
func Ext(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return "", ErrInvalidExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) > 8 || len(ext) < 2 {
		return "", ErrInvalidExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", ErrInvalidExt
		}
	}
	return ext, nil
}

// Hash normalizes a hex content hash to lower case.
func Hash(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != HashLength {
		return "", ErrInvalidHash
	}
	for _, r := range hash {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return "", ErrInvalidHash
		}
	}
	return hash, nil
}
