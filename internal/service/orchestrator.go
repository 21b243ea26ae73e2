package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/fsutil"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/port"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultPreviewSeconds   = 10
	DefaultCompressionSlots = 3
)

// Orchestrator runs the transcode pipeline for one job at a time per
// caller: flush, thumbnail, preview, compress, cleanup. Compression is
// gated by a semaphore shared by every caller.
type Orchestrator struct {
	transcoder     port.Transcoder
	dedup          port.DedupStore
	ledger         port.JobLedger
	events         EventPublisher
	layout         Layout
	compressSlots  *semaphore.Weighted
	previewSeconds int
}

type OrchestratorConfig struct {
	Layout           Layout
	CompressionSlots int
	PreviewSeconds   int
}

func NewOrchestrator(
	transcoder port.Transcoder,
	dedup port.DedupStore,
	ledger port.JobLedger,
	events EventPublisher,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.CompressionSlots < 1 {
		cfg.CompressionSlots = DefaultCompressionSlots
	}
	if cfg.PreviewSeconds < 1 {
		cfg.PreviewSeconds = DefaultPreviewSeconds
	}
	return &Orchestrator{
		transcoder:     transcoder,
		dedup:          dedup,
		ledger:         ledger,
		events:         events,
		layout:         cfg.Layout,
		compressSlots:  semaphore.NewWeighted(int64(cfg.CompressionSlots)),
		previewSeconds: cfg.PreviewSeconds,
	}
}

// Process drives job through every stage. The returned error is for
// logging only; it has already been recorded in the ledger. A job picked
// up after ctx ended is abandoned without touching the disk.
func (o *Orchestrator) Process(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		job.ReleaseChunks()
		o.updateStatus(job.ID, domain.JobStatusAbandoned, "shut down before processing")
		return fmt.Errorf("abandoned: %w", err)
	}

	rec := &domain.Record{
		ID:          job.ID,
		ContentHash: job.ContentHash,
		Status:      domain.JobStatusProcessing,
	}
	o.updateStatus(job.ID, domain.JobStatusProcessing, "")

	tempPath, err := o.flush(job)
	if err != nil {
		return o.fail(rec, fmt.Errorf("flush: %w", err))
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			logger.Warn.Printf("job %s: remove temp file: %v", job.ID, err)
		}
	}()
	logger.Debug.Printf("job %s: flushed %d bytes to %s", job.ID, job.Size, tempPath)

	o.previews(ctx, job, tempPath, rec)

	outPath, codec, err := o.compress(ctx, job, tempPath)
	if err != nil {
		return o.fail(rec, fmt.Errorf("compress: %w", err))
	}
	rec.OutputPath = outPath
	logger.Info.Printf("job %s: compressed with %s to %s", job.ID, codec, outPath)

	if job.ContentHash != "" {
		if err := o.dedup.Insert(job.ContentHash, filepath.Base(outPath)); err != nil {
			if errors.Is(err, domain.ErrDuplicateContent) {
				logger.Warn.Printf("job %s: content %s already recorded", job.ID, job.ContentHash)
			} else {
				logger.Error.Printf("job %s: record content hash: %v", job.ID, err)
			}
		}
	}

	rec.Status = domain.JobStatusDone
	o.updateOutputs(rec)
	o.publish(job.ID)
	return nil
}

func (o *Orchestrator) flush(job *domain.Job) (string, error) {
	path := fsutil.UniquePath(filepath.Join(o.layout.Temp, job.ID+job.Ext()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}

	_, werr := job.WriteTo(f)
	cerr := f.Close()
	job.ReleaseChunks()

	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return "", errors.Join(werr, cerr)
	}
	return path, nil
}

// previews renders the thumbnail and the short clip. Neither is required
// for compression, so failures are logged and the pipeline continues.
func (o *Orchestrator) previews(ctx context.Context, job *domain.Job, input string, rec *domain.Record) {
	thumbPath := fsutil.UniquePath(filepath.Join(o.layout.Previews, job.ID+".png"))
	if err := o.transcoder.Thumbnail(ctx, input, thumbPath); err != nil {
		logger.Warn.Printf("job %s: thumbnail failed: %v", job.ID, err)
	} else {
		rec.ThumbPath = thumbPath
	}

	clipPath := fsutil.UniquePath(filepath.Join(o.layout.Previews, job.ID+".mp4"))
	if err := o.transcoder.Preview(ctx, input, clipPath, o.previewSeconds); err != nil {
		logger.Warn.Printf("job %s: preview failed: %v", job.ID, err)
	} else {
		rec.PreviewPath = clipPath
	}

	if rec.ThumbPath != "" || rec.PreviewPath != "" {
		o.updateOutputs(rec)
		o.publish(job.ID)
	}
}

func (o *Orchestrator) compress(ctx context.Context, job *domain.Job, input string) (string, string, error) {
	start := time.Now()
	if err := o.compressSlots.Acquire(ctx, 1); err != nil {
		return "", "", err
	}
	defer o.compressSlots.Release(1)
	if waited := time.Since(start); waited > time.Second {
		logger.Debug.Printf("job %s: waited %s for a compression slot", job.ID, waited.Round(time.Millisecond))
	}

	outPath := fsutil.UniquePath(filepath.Join(o.layout.Uploads, job.ID+".mp4"))
	codec, err := o.transcoder.Compress(ctx, input, outPath)
	if err != nil {
		_ = os.Remove(outPath)
		return "", "", err
	}
	return outPath, codec, nil
}

func (o *Orchestrator) fail(rec *domain.Record, err error) error {
	logger.Error.Printf("job %s failed: %v", rec.ID, err)
	rec.Status = domain.JobStatusFailed
	rec.ErrorMessage = err.Error()
	o.updateOutputs(rec)
	return err
}

func (o *Orchestrator) updateStatus(id string, status domain.JobStatus, msg string) {
	if err := o.ledger.UpdateStatus(id, status, msg); err != nil {
		logger.Error.Printf("job %s: update ledger status: %v", id, err)
	}
}

func (o *Orchestrator) updateOutputs(rec *domain.Record) {
	if err := o.ledger.UpdateOutputs(rec); err != nil {
		logger.Error.Printf("job %s: update ledger outputs: %v", rec.ID, err)
	}
}

func (o *Orchestrator) publish(jobID string) {
	if o.events != nil {
		o.events.Publish(Event{Type: EventVideosChanged, JobID: jobID, At: time.Now()})
	}
}
