package ffmpeg

import (
	"context"
	"sync"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultCandidates lists hardware encoders first and the software fallback last.
var DefaultCandidates = []string{
	"h264_nvenc",
	"h264_qsv",
	"h264_amf",
	"h264_videotoolbox",
	"libx264",
}

type runFunc func(ctx context.Context, args ...string) error

// Prober picks the first usable H.264 encoder on first use and pins it for
// the life of the process. A failed round pins nothing.
type Prober struct {
	candidates []string
	run        runFunc
	group      singleflight.Group

	mu       sync.RWMutex
	selected string
}

func newProber(run runFunc, candidates []string) *Prober {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return &Prober{
		candidates: candidates,
		run:        run,
	}
}

func probeArgs(codec string) []string {
	return []string{
		"-hide_banner",
		"-f", "lavfi",
		"-i", "nullsrc",
		"-c:v", codec,
		"-frames:v", "1",
		"-f", "null", "-",
	}
}

// Selected returns the pinned encoder, or "" before a successful probe.
func (p *Prober) Selected() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// Encoder returns the pinned encoder, probing the candidates if none is
// pinned yet. Concurrent callers share one probe round.
func (p *Prober) Encoder(ctx context.Context) (string, error) {
	if codec := p.Selected(); codec != "" {
		return codec, nil
	}

	v, err, _ := p.group.Do("probe", func() (any, error) {
		if codec := p.Selected(); codec != "" {
			return codec, nil
		}
		for _, codec := range p.candidates {
			if err := p.run(ctx, probeArgs(codec)...); err != nil {
				logger.Debug.Printf("encoder %s unavailable: %v", codec, err)
				continue
			}
			p.mu.Lock()
			if p.selected == "" {
				p.selected = codec
			}
			codec = p.selected
			p.mu.Unlock()
			logger.Info.Printf("selected encoder %s", codec)
			return codec, nil
		}
		return "", domain.ErrNoEncoder
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
