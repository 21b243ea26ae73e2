package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
)

type JobProcessor interface {
	Process(ctx context.Context, job *domain.Job) error
}

// ProcessKiller force-stops tracked subprocesses and reports how many it hit.
type ProcessKiller interface {
	KillAll() int
}

// WorkerPool drains a DispatchQueue with a fixed number of goroutines.
type WorkerPool struct {
	queue     *DispatchQueue
	processor JobProcessor
	killer    ProcessKiller
	workers   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool(queue *DispatchQueue, processor JobProcessor, killer ProcessKiller, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:     queue,
		processor: processor,
		killer:    killer,
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (wp *WorkerPool) Start() {
	for i := range wp.workers {
		wp.wg.Add(1)
		go wp.runWorker(i)
	}
	logger.Info.Printf("started %d workers", wp.workers)
}

func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) runWorker(id int) {
	defer wp.wg.Done()
	for {
		job, ok := wp.queue.Dequeue()
		if !ok {
			logger.Debug.Printf("worker %d: queue closed, exiting", id)
			return
		}
		logger.Info.Printf("worker %d: processing job %s (%s, %d chunks)",
			id, job.ID, logger.SanitizeForLog(job.OriginalName), job.ReceivedChunks)
		wp.processJob(id, job)
	}
}

func (wp *WorkerPool) processJob(id int, job *domain.Job) {
	defer wp.queue.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("worker %d: panic processing job %s: %v\n%s", id, job.ID, r, debug.Stack())
		}
	}()

	if err := wp.processor.Process(wp.ctx, job); err != nil {
		logger.Error.Printf("worker %d: job %s: %v", id, job.ID, err)
		return
	}
	logger.Info.Printf("worker %d: job %s completed", id, job.ID)
}

// Shutdown closes the queue and waits for the workers to drain it. If ctx
// ends first, running jobs are cancelled and tracked processes killed; the
// workers are still joined before returning.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	wp.queue.Close()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("workers did not drain in time: %w", ctx.Err())
		wp.cancel()
		if wp.killer != nil {
			n := wp.killer.KillAll()
			logger.Warn.Printf("shutdown deadline reached, killed %d processes", n)
		}
		<-done
	}
	wp.cancel()

	if wp.killer != nil {
		if n := wp.killer.KillAll(); n > 0 {
			logger.Warn.Printf("killed %d straggling processes after join", n)
		}
	}
	logger.Info.Printf("all %d workers stopped", wp.workers)
	return err
}
