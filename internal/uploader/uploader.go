// Package uploader streams every file of a directory to a vidq server.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/vidq/internal/adapter/rpc"
	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
)

// ChunkSize is the payload size of every chunk but the last.
const ChunkSize = 64 * 1024

var ErrEmptyFile = errors.New("file is empty")

// Client is the part of the rpc client the uploader drives.
type Client interface {
	UploadMedia(ctx context.Context) (rpc.UploadMediaClient, error)
	CheckDuplicate(ctx context.Context, hash string) (*rpc.UploadStatus, error)
}

// Result is the outcome of one file.
type Result struct {
	Path     string
	Hash     string
	Uploaded bool
	// Skipped is set when the server already stores the content.
	Skipped  bool
	Attempts int
	Message  string
	Err      error
}

type Uploader struct {
	client  Client
	threads int
	retries int
	backoff *Backoff
}

type Option func(*Uploader)

func WithBackoff(b *Backoff) Option {
	return func(u *Uploader) {
		u.backoff = b
	}
}

// WithRetries sets how many times a failed upload is retried.
func WithRetries(n int) Option {
	return func(u *Uploader) {
		if n >= 0 {
			u.retries = n
		}
	}
}

func New(client Client, threads int, opts ...Option) *Uploader {
	if threads < 1 {
		threads = 1
	}
	u := &Uploader{
		client:  client,
		threads: threads,
		retries: 1,
		backoff: NewBackoff(500*time.Millisecond, 5*time.Second, 2.0),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadDir uploads every regular file under dir, at most threads at a
// time. A failing file does not stop the others; its error is in its
// Result. The error return covers walking the directory only.
func (u *Uploader) UploadDir(ctx context.Context, dir string) ([]Result, error) {
	paths, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.threads)
	for _, path := range paths {
		g.Go(func() error {
			res := u.UploadFile(gctx, path)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

func listFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}

// UploadFile hashes path, asks the server whether it already has the
// content and streams it when it does not. A transport error or a
// rejection is retried after a backoff.
func (u *Uploader) UploadFile(ctx context.Context, path string) Result {
	res := Result{Path: path}

	hash, size, err := hashFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Hash = hash
	if size == 0 {
		res.Err = ErrEmptyFile
		return res
	}

	dedup, err := u.client.CheckDuplicate(ctx, hash)
	if err != nil {
		res.Err = fmt.Errorf("check duplicate: %w", err)
		return res
	}
	if !dedup.Success {
		res.Skipped = true
		res.Message = dedup.Message
		logger.Info.Printf("skip %s: %s", path, dedup.Message)
		return res
	}

	for attempt := 0; attempt <= u.retries; attempt++ {
		if attempt > 0 {
			wait := u.backoff.Duration(attempt)
			logger.Warn.Printf("retry %s in %s", path, wait)
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			case <-time.After(wait):
			}
		}
		res.Attempts = attempt + 1

		reply, err := u.send(ctx, path, hash)
		if err != nil {
			res.Err = err
			res.Message = ""
			if errors.Is(err, ErrEmptyFile) {
				return res
			}
			continue
		}
		res.Err = nil
		res.Message = reply.Message
		if reply.Success {
			res.Uploaded = true
			logger.Info.Printf("uploaded %s: %s", path, reply.Message)
			return res
		}
		if reply.Message == rpc.MsgContentUploaded {
			res.Skipped = true
			return res
		}
		logger.Warn.Printf("upload of %s rejected: %s", path, reply.Message)
	}
	return res
}

// hashFile returns the content hash of path and its size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	hash, err := domain.HashReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hash, info.Size(), nil
}

// TotalChunks is the number of ChunkSize chunks needed for size bytes.
func TotalChunks(size int64) uint32 {
	return uint32((size + ChunkSize - 1) / ChunkSize)
}

func (u *Uploader) send(ctx context.Context, path, hash string) (*rpc.UploadStatus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}
	total := TotalChunks(info.Size())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := u.client.UploadMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	buf := make([]byte, ChunkSize)
	first := true
	for {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			chunk := &rpc.VideoChunk{
				Data:        append([]byte(nil), buf[:n]...),
				TotalChunks: total,
			}
			if first {
				chunk.FileName = filepath.Base(path)
				chunk.ContentHash = hash
				first = false
			}
			if err := stream.Send(chunk); err != nil {
				// io.EOF means the server already answered; the reply
				// comes from CloseAndRecv.
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("send chunk: %w", err)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read %s: %w", path, rerr)
		}
	}

	reply, err := stream.CloseAndRecv()
	if err != nil {
		return nil, fmt.Errorf("close stream: %w", err)
	}
	return reply, nil
}
