// Package templates holds the templ components of the web gallery.
package templates

import (
	"fmt"
	"net/url"

	"github.com/a-h/templ"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/service"
)

func queueLine(stats service.QueueStats) string {
	line := fmt.Sprintf("workers %d, queue %d/%d, reserved %d",
		stats.Workers, stats.Depth, stats.Capacity, stats.Reserved)
	if stats.Closed {
		line += ", shutting down"
	}
	return line
}

// displayName falls back to the job id for previews without a ledger row.
func displayName(p domain.Preview) string {
	if p.OriginalName != "" {
		return p.OriginalName
	}
	return p.JobID
}

func videoURL(p domain.Preview) templ.SafeURL {
	return templ.URL("/videos/" + url.PathEscape(p.JobID))
}

func thumbURL(p domain.Preview) string {
	return "/previews/" + url.PathEscape(p.File)
}

func clipURL(p domain.Preview) string {
	return "/previews/" + url.PathEscape(p.JobID) + ".mp4"
}
