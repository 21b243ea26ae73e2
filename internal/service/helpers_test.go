package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bnema/vidq/internal/adapter/storage/filetable"
	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/port/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// sliceSource replays chunks, then returns err or io.EOF.
type sliceSource struct {
	chunks []*domain.Chunk
	err    error
	next   int
}

func (s *sliceSource) Recv() (*domain.Chunk, error) {
	if s.next < len(s.chunks) {
		c := s.chunks[s.next]
		s.next++
		return c, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

// blockingSource sends one chunk and then blocks until release is closed.
type blockingSource struct {
	first   *domain.Chunk
	sent    bool
	release chan struct{}
}

func (s *blockingSource) Recv() (*domain.Chunk, error) {
	if !s.sent {
		s.sent = true
		return s.first, nil
	}
	<-s.release
	return nil, errors.New("stream aborted")
}

func chunksFor(name string, data ...string) []*domain.Chunk {
	chunks := make([]*domain.Chunk, len(data))
	for i, d := range data {
		chunks[i] = &domain.Chunk{Data: []byte(d)}
	}
	if len(chunks) > 0 {
		chunks[0].FileName = name
		chunks[0].TotalChunks = uint32(len(data))
	}
	return chunks
}

// recordingProcessor records processed jobs. With a gate it holds each job
// until the gate closes or the context ends.
type recordingProcessor struct {
	mu      sync.Mutex
	jobs    []*domain.Job
	gate    chan struct{}
	started chan string
	calls   atomic.Int32
}

func (p *recordingProcessor) Process(ctx context.Context, job *domain.Job) error {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- job.ID
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.jobs = append(p.jobs, job)
	p.mu.Unlock()
	return nil
}

func (p *recordingProcessor) processed() []*domain.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.Job(nil), p.jobs...)
}

type countingKiller struct {
	calls atomic.Int32
}

func (k *countingKiller) KillAll() int {
	k.calls.Add(1)
	return 0
}

func newNopLedger(t *testing.T) *mocks.JobLedgerMock {
	t.Helper()
	ledger := mocks.NewJobLedgerMock(t)
	ledger.On("Save", mock.Anything).Return(nil).Maybe()
	ledger.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	ledger.On("UpdateOutputs", mock.Anything).Return(nil).Maybe()
	return ledger
}

func newTestDedup(t *testing.T) *filetable.Store {
	t.Helper()
	store, err := filetable.NewStore(filepath.Join(t.TempDir(), filetable.FileName))
	require.NoError(t, err)
	return store
}
