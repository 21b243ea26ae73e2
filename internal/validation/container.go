package validation

import (
	"bytes"
	"net/http"
)

// ContainerExt guesses the container of a media file from its first bytes
// and returns the matching extension, or "" when the format is not a
// known video container.
func ContainerExt(head []byte) string {
	if len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		// EBML header: WebM and Matroska share it, the DocType tells them apart.
		if bytes.Contains(head[:min(len(head), 64)], []byte("webm")) {
			return ".webm"
		}
		return ".mkv"
	}

	// ISO base media: [size]["ftyp"][brand]
	if len(head) >= 12 && string(head[4:8]) == "ftyp" {
		if string(head[8:12]) == "qt  " {
			return ".mov"
		}
		return ".mp4"
	}

	if len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "AVI " {
		return ".avi"
	}

	switch http.DetectContentType(head) {
	case "video/webm":
		return ".webm"
	case "video/avi":
		return ".avi"
	case "video/mp4":
		return ".mp4"
	}
	return ""
}
