package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/vidq/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains null byte")
)

const stderrTail = 512

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}

// Converter runs the ffmpeg binary for each transcode stage. Every process
// it starts is tracked in its Registry until it exits.
type Converter struct {
	binary   string
	registry *Registry
	prober   *Prober
}

type Option func(*Converter)

// WithCandidates overrides the encoder probe order.
func WithCandidates(codecs ...string) Option {
	return func(c *Converter) {
		c.prober = newProber(c.run, codecs)
	}
}

func NewConverter(binary string, registry *Registry, opts ...Option) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	if registry == nil {
		registry = NewRegistry()
	}
	c := &Converter{
		binary:   binary,
		registry: registry,
	}
	c.prober = newProber(c.run, nil)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Converter) Registry() *Registry { return c.registry }

func (c *Converter) Prober() *Prober { return c.prober }

func (c *Converter) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	if err := validatePaths(inputPath, outputPath); err != nil {
		return err
	}
	return c.run(ctx,
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vf", "thumbnail",
		"-frames:v", "1",
		"-y", outputPath,
	)
}

func (c *Converter) Preview(ctx context.Context, inputPath, outputPath string, seconds int) error {
	if err := validatePaths(inputPath, outputPath); err != nil {
		return err
	}
	if seconds <= 0 {
		return fmt.Errorf("invalid preview length %d", seconds)
	}
	return c.run(ctx,
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-t", strconv.Itoa(seconds),
		"-c", "copy",
		"-y", outputPath,
	)
}

// Compress re-encodes the input with the probed encoder and returns its name.
func (c *Converter) Compress(ctx context.Context, inputPath, outputPath string) (string, error) {
	if err := validatePaths(inputPath, outputPath); err != nil {
		return "", err
	}
	codec, err := c.prober.Encoder(ctx)
	if err != nil {
		return "", err
	}
	err = c.run(ctx,
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-c:v", codec,
		"-preset", "fast",
		"-y", outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("compress with %s: %w", codec, err)
	}
	return codec, nil
}

func validatePaths(inputPath, outputPath string) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	return nil
}

func (c *Converter) run(ctx context.Context, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}
	c.registry.add(cmd.Process)
	err := cmd.Wait()
	c.registry.remove(cmd.Process)

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > stderrTail {
			msg = msg[len(msg)-stderrTail:]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

var _ port.Transcoder = (*Converter)(nil)
