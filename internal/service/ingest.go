package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/port"
	"github.com/bnema/vidq/internal/validation"
)

const DefaultEnqueueTimeout = time.Second

// ChunkSource yields the chunks of one upload and io.EOF after the last.
type ChunkSource interface {
	Recv() (*domain.Chunk, error)
}

// QueueStats is a point-in-time view of admission and dispatch.
type QueueStats struct {
	Configured bool `json:"configured"`
	Capacity   int  `json:"capacity"`
	Reserved   int  `json:"reserved"`
	Depth      int  `json:"depth"`
	Waiting    int  `json:"waiting"`
	Workers    int  `json:"workers"`
	// Closed is set once shutdown has begun and enqueues are refused.
	Closed     bool `json:"closed"`
}

// IngestService accepts upload streams, admits them under the capacity
// bound and hands complete jobs to the worker pool.
type IngestService struct {
	processor      JobProcessor
	killer         ProcessKiller
	dedup          port.DedupStore
	ledger         port.JobLedger
	enqueueTimeout time.Duration

	mu        sync.RWMutex
	admission *Admission
	queue     *DispatchQueue
	pool      *WorkerPool
}

func NewIngestService(
	processor JobProcessor,
	killer ProcessKiller,
	dedup port.DedupStore,
	ledger port.JobLedger,
	enqueueTimeout time.Duration,
) *IngestService {
	if enqueueTimeout <= 0 {
		enqueueTimeout = DefaultEnqueueTimeout
	}
	return &IngestService{
		processor:      processor,
		killer:         killer,
		dedup:          dedup,
		ledger:         ledger,
		enqueueTimeout: enqueueTimeout,
	}
}

// Configure sizes the queue and starts the workers. It may run once per
// process; later calls return ErrAlreadyConfigured.
func (s *IngestService) Configure(maxWorkers, maxQueue int) error {
	if maxWorkers < 1 || maxQueue < 1 {
		return fmt.Errorf("invalid configuration: workers=%d queue=%d", maxWorkers, maxQueue)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		logger.Warn.Printf("service already configured, restart to reconfigure")
		return domain.ErrAlreadyConfigured
	}

	s.queue = NewDispatchQueue(maxQueue)
	s.admission = NewAdmission(maxQueue, s.queue.Depth)
	s.pool = NewWorkerPool(s.queue, claimReleaser{next: s.processor, admission: s.admission}, s.killer, maxWorkers)
	s.pool.Start()

	logger.Info.Printf("configured with %d workers and a queue length of %d", maxWorkers, maxQueue)
	return nil
}

type ingestState struct {
	admission *Admission
	queue     *DispatchQueue
	pool      *WorkerPool
}

func (s *IngestService) state() (ingestState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return ingestState{}, domain.ErrNotConfigured
	}
	return ingestState{admission: s.admission, queue: s.queue, pool: s.pool}, nil
}

// Ingest consumes one upload stream. The declared filename of the first
// chunk is sanitized and becomes the reservation key. On success the
// returned job is owned by the queue.
func (s *IngestService) Ingest(ctx context.Context, src ChunkSource) (*domain.Job, error) {
	st, err := s.state()
	if err != nil {
		return nil, err
	}

	first, err := src.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrIncompleteUpload
		}
		return nil, fmt.Errorf("receive first chunk: %w", err)
	}

	admission, queue := st.admission, st.queue
	name := validation.SanitizeFilename(first.FileName)

	if err := admission.TryAdmit(name); err != nil {
		logger.Warn.Printf("rejected upload %s: %v", logger.SanitizeForLog(name), err)
		return nil, err
	}
	reserved := true
	defer func() {
		if reserved {
			admission.Release(name)
		}
	}()

	job := domain.NewJob(name, first.TotalChunks, first.ContentHash)
	job.SniffedExt = validation.ContainerExt(first.Data)
	job.AddChunk(first.Data)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := src.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn.Printf("upload %s aborted after %d chunks: %v", job.ID, job.ReceivedChunks, err)
			return nil, fmt.Errorf("receive chunk %d: %w", job.ReceivedChunks+1, err)
		}
		job.AddChunk(chunk.Data)
	}

	if !job.IsComplete() {
		logger.Warn.Printf("upload %s incomplete: %d of %d chunks", job.ID, job.ReceivedChunks, job.ExpectedChunks)
		return nil, domain.ErrIncompleteUpload
	}

	hash := job.Digest()
	if job.DeclaredHash != "" && job.DeclaredHash != hash {
		logger.Warn.Printf("upload %s hash mismatch: declared %s, computed %s",
			job.ID, logger.SanitizeForLog(job.DeclaredHash), hash)
		return nil, domain.ErrHashMismatch
	}
	if existing, ok := s.dedup.Lookup(hash); ok {
		logger.Info.Printf("upload %s duplicates %s", job.ID, existing)
		return nil, domain.ErrDuplicateContent
	}
	if err := admission.ClaimContent(hash); err != nil {
		logger.Info.Printf("upload %s duplicates an upload still in the pipeline", job.ID)
		return nil, err
	}

	rec := domain.NewRecord(job)
	if err := s.ledger.Save(rec); err != nil {
		logger.Error.Printf("upload %s: save ledger record: %v", job.ID, err)
	}

	err = queue.Enqueue(job, s.enqueueTimeout)
	admission.Release(name)
	reserved = false
	if err != nil {
		admission.ReleaseContent(hash)
		logger.Warn.Printf("upload %s not queued: %v", job.ID, err)
		if uerr := s.ledger.UpdateStatus(job.ID, domain.JobStatusFailed, err.Error()); uerr != nil {
			logger.Error.Printf("upload %s: update ledger status: %v", job.ID, uerr)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEnqueueFailed, err)
	}

	logger.Info.Printf("upload %s (%s, %d bytes) added to the queue",
		job.ID, logger.SanitizeForLog(name), job.Size)
	return job, nil
}

// IsDuplicate reports whether content with hash has already been stored
// or is on its way through the pipeline.
func (s *IngestService) IsDuplicate(hash string) bool {
	if _, ok := s.dedup.Lookup(hash); ok {
		return true
	}
	st, err := s.state()
	return err == nil && st.admission.ContentClaimed(hash)
}

func (s *IngestService) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool != nil
}

func (s *IngestService) Stats() QueueStats {
	st, err := s.state()
	if err != nil {
		return QueueStats{}
	}
	return QueueStats{
		Configured: true,
		Capacity:   st.admission.Capacity(),
		Reserved:   st.admission.Reserved(),
		Depth:      st.queue.Depth(),
		Waiting:    st.queue.Len(),
		Workers:    st.pool.Workers(),
		Closed:     st.queue.Closed(),
	}
}

// claimReleaser drops a job's content claim once the pipeline is done with
// it. By then a successful job's hash is in the dedup table.
type claimReleaser struct {
	next      JobProcessor
	admission *Admission
}

func (c claimReleaser) Process(ctx context.Context, job *domain.Job) error {
	defer c.admission.ReleaseContent(job.ContentHash)
	return c.next.Process(ctx, job)
}

// Shutdown stops accepting work and joins the workers. Without a prior
// Configure there is nothing to stop.
func (s *IngestService) Shutdown(ctx context.Context) error {
	st, err := s.state()
	if err != nil {
		if s.killer != nil {
			s.killer.KillAll()
		}
		return nil
	}
	logger.Info.Printf("shutting down ingest service")
	return st.pool.Shutdown(ctx)
}
