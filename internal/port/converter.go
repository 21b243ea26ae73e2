package port

import "context"

// Transcoder runs the external media tool. Every call blocks until the
// subprocess exits or ctx is cancelled.
type Transcoder interface {
	Thumbnail(ctx context.Context, inputPath, outputPath string) error
	Preview(ctx context.Context, inputPath, outputPath string, seconds int) error
	Compress(ctx context.Context, inputPath, outputPath string) (codec string, err error)
}
