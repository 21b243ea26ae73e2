package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestIngest(t *testing.T, proc JobProcessor) *IngestService {
	t.Helper()
	svc := NewIngestService(proc, &countingKiller{}, newTestDedup(t), newNopLedger(t), 100*time.Millisecond)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func TestIngest_NotConfigured(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("a.mp4", "x")})

	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.False(t, svc.Configured())
	assert.Equal(t, QueueStats{}, svc.Stats())
}

func TestIngest_ConfigureIsOneShot(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})

	require.NoError(t, svc.Configure(2, 5))
	assert.ErrorIs(t, svc.Configure(4, 10), domain.ErrAlreadyConfigured)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.Workers)
	assert.Equal(t, 5, stats.Capacity)
	assert.False(t, stats.Closed)
}

func TestIngest_ConfigureRejectsInvalidSizes(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})

	assert.Error(t, svc.Configure(0, 5))
	assert.Error(t, svc.Configure(1, 0))
	assert.False(t, svc.Configured())
}

func TestIngest_CompleteUploadIsProcessed(t *testing.T) {
	proc := &recordingProcessor{}
	svc := newTestIngest(t, proc)
	require.NoError(t, svc.Configure(1, 2))

	job, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("my/clip.mp4", "ab", "cd", "ef")})
	require.NoError(t, err)

	assert.Equal(t, "my_clip.mp4", job.OriginalName, "declared name is sanitized")
	assert.Equal(t, uint32(3), job.ReceivedChunks)
	assert.Len(t, job.ContentHash, 64)

	require.NoError(t, svc.Shutdown(context.Background()))
	processed := proc.processed()
	require.Len(t, processed, 1)
	assert.Equal(t, job.ID, processed[0].ID)
	assert.Equal(t, 0, svc.Stats().Reserved)
}

func TestIngest_ChunkOrderPreserved(t *testing.T) {
	proc := &recordingProcessor{}
	svc := newTestIngest(t, proc)
	require.NoError(t, svc.Configure(1, 2))

	data := make([]string, 50)
	for i := range data {
		data[i] = fmt.Sprintf("<%02d>", i)
	}
	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("order.mp4", data...)})
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))

	processed := proc.processed()
	require.Len(t, processed, 1)
	for i, chunk := range processed[0].Chunks {
		assert.Equal(t, data[i], string(chunk))
	}
}

func TestIngest_UnknownTotalIsCompleteWithAnyChunk(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})
	require.NoError(t, svc.Configure(1, 2))

	chunks := chunksFor("a.mp4", "x", "y")
	chunks[0].TotalChunks = 0

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunks})
	assert.NoError(t, err)
}

func TestIngest_IncompleteNeverEnqueued(t *testing.T) {
	tests := []struct {
		name   string
		chunks []*domain.Chunk
	}{
		{name: "empty stream", chunks: nil},
		{name: "missing chunks", chunks: func() []*domain.Chunk {
			c := chunksFor("a.mp4", "x", "y")
			c[0].TotalChunks = 3
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &recordingProcessor{}
			svc := newTestIngest(t, proc)
			require.NoError(t, svc.Configure(1, 2))

			_, err := svc.Ingest(context.Background(), &sliceSource{chunks: tt.chunks})

			assert.ErrorIs(t, err, domain.ErrIncompleteUpload)
			stats := svc.Stats()
			assert.Equal(t, 0, stats.Reserved, "reservation released")
			assert.Equal(t, 0, stats.Depth)
			require.NoError(t, svc.Shutdown(context.Background()))
			assert.Equal(t, int32(0), proc.calls.Load())
		})
	}
}

func TestIngest_TransportErrorReleasesReservation(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})
	require.NoError(t, svc.Configure(1, 2))

	src := &sliceSource{chunks: chunksFor("a.mp4", "x", "y", "z")[:2], err: errors.New("connection reset")}
	_, err := svc.Ingest(context.Background(), src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 0, svc.Stats().Reserved)

	_, err = svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("a.mp4", "x")})
	assert.NoError(t, err, "same name can be uploaded again")
}

func TestIngest_FirstRecvError(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})
	require.NoError(t, svc.Configure(1, 2))

	_, err := svc.Ingest(context.Background(), &sliceSource{err: errors.New("broken pipe")})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrIncompleteUpload)
}

func TestIngest_DuplicateInFlightNameRejected(t *testing.T) {
	svc := newTestIngest(t, &recordingProcessor{})
	require.NoError(t, svc.Configure(1, 5))

	first := &blockingSource{first: &domain.Chunk{FileName: "same.mp4", TotalChunks: 2, Data: []byte("x")}, release: make(chan struct{})}
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(context.Background(), first)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return svc.Stats().Reserved == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("same.mp4", "y")})
	assert.ErrorIs(t, err, domain.ErrDuplicateUpload)

	close(first.release)
	assert.Error(t, <-errCh)
	assert.Equal(t, 0, svc.Stats().Reserved)
}

func TestIngest_CapacityPlusOneStalledStreams(t *testing.T) {
	const capacity = 3
	svc := newTestIngest(t, &recordingProcessor{})
	require.NoError(t, svc.Configure(1, capacity))

	release := make(chan struct{})
	results := make(chan error, capacity+1)
	var wg sync.WaitGroup
	for i := range capacity + 1 {
		src := &blockingSource{
			first:   &domain.Chunk{FileName: fmt.Sprintf("stall-%d.mp4", i), TotalChunks: 10, Data: []byte("x")},
			release: release,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), src)
			results <- err
		}()
	}

	select {
	case err := <-results:
		assert.ErrorIs(t, err, domain.ErrQueueFull)
	case <-time.After(2 * time.Second):
		t.Fatal("no stream was rejected")
	}
	assert.Equal(t, capacity, svc.Stats().Reserved)

	close(release)
	wg.Wait()
	close(results)

	full := 0
	for err := range results {
		require.Error(t, err)
		if errors.Is(err, domain.ErrQueueFull) {
			full++
		}
	}
	assert.Equal(t, 0, full, "only the first result was a capacity rejection")
	assert.Equal(t, 0, svc.Stats().Reserved)
}

func TestIngest_CapacityTwoOneWorkerThreeJobs(t *testing.T) {
	proc := &recordingProcessor{gate: make(chan struct{}), started: make(chan string, 3)}
	svc := newTestIngest(t, proc)
	require.NoError(t, svc.Configure(1, 2))

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("one.mp4", "1")})
	require.NoError(t, err)
	<-proc.started

	_, err = svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("two.mp4", "2")})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("three.mp4", "3")})
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.Depth)
	assert.Equal(t, 1, stats.Waiting)

	close(proc.gate)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, proc.processed(), 2)
}

func TestIngest_HashChecks(t *testing.T) {
	t.Run("declared hash mismatch", func(t *testing.T) {
		svc := newTestIngest(t, &recordingProcessor{})
		require.NoError(t, svc.Configure(1, 2))
		chunks := chunksFor("a.mp4", "payload")
		chunks[0].ContentHash = "deadbeef"

		_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunks})

		assert.ErrorIs(t, err, domain.ErrHashMismatch)
		assert.Equal(t, 0, svc.Stats().Reserved)
	})

	t.Run("declared hash matches case-insensitively", func(t *testing.T) {
		svc := newTestIngest(t, &recordingProcessor{})
		require.NoError(t, svc.Configure(1, 2))
		want := (&domain.Job{Chunks: [][]byte{[]byte("payload")}}).Digest()
		chunks := chunksFor("a.mp4", "payload")
		chunks[0].ContentHash = strings.ToUpper(want)

		_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunks})

		assert.NoError(t, err)
	})

	t.Run("known content rejected", func(t *testing.T) {
		dedup := newTestDedup(t)
		svc := NewIngestService(&recordingProcessor{}, nil, dedup, newNopLedger(t), 100*time.Millisecond)
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
		require.NoError(t, svc.Configure(1, 2))
		hash := (&domain.Job{Chunks: [][]byte{[]byte("payload")}}).Digest()
		require.NoError(t, dedup.Insert(hash, "old.mp4"))

		assert.True(t, svc.IsDuplicate(hash))
		_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("b.mp4", "payload")})
		assert.ErrorIs(t, err, domain.ErrDuplicateContent)
	})
}

func TestIngest_SameContentInFlightUnderAnotherName(t *testing.T) {
	proc := &recordingProcessor{gate: make(chan struct{}), started: make(chan string, 2)}
	svc := newTestIngest(t, proc)
	require.NoError(t, svc.Configure(2, 4))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{"first.mp4", "second.mp4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor(name, "same", "bytes")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrDuplicateContent):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, duplicates)

	hash := (&domain.Job{Chunks: [][]byte{[]byte("same"), []byte("bytes")}}).Digest()
	<-proc.started
	assert.True(t, svc.IsDuplicate(hash), "in-flight content counts as known")

	close(proc.gate)
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Len(t, proc.processed(), 1)
	assert.False(t, svc.IsDuplicate(hash), "claim is dropped once the job leaves the pipeline")
}

func TestIngest_EnqueueFailureReleasesContentClaim(t *testing.T) {
	svc := NewIngestService(&recordingProcessor{}, nil, newTestDedup(t), newNopLedger(t), 100*time.Millisecond)
	require.NoError(t, svc.Configure(1, 2))
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("late.mp4", "x")})
	require.ErrorIs(t, err, domain.ErrEnqueueFailed)

	hash := (&domain.Job{Chunks: [][]byte{[]byte("x")}}).Digest()
	assert.False(t, svc.IsDuplicate(hash))
}

func TestIngest_EnqueueFailureAfterShutdown(t *testing.T) {
	ledger := newNopLedger(t)
	svc := NewIngestService(&recordingProcessor{}, nil, newTestDedup(t), ledger, 100*time.Millisecond)
	require.NoError(t, svc.Configure(1, 2))
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("late.mp4", "x")})

	assert.ErrorIs(t, err, domain.ErrEnqueueFailed)
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
	ledger.AssertCalled(t, "UpdateStatus", mock.Anything, domain.JobStatusFailed, mock.Anything)
	assert.True(t, svc.Stats().Closed)
}

func TestIngest_LedgerErrorsDoNotFailUpload(t *testing.T) {
	ledger := mocks.NewJobLedgerMock(t)
	ledger.On("Save", mock.Anything).Return(errors.New("disk full")).Once()
	svc := NewIngestService(&recordingProcessor{}, nil, newTestDedup(t), ledger, 100*time.Millisecond)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	require.NoError(t, svc.Configure(1, 2))

	_, err := svc.Ingest(context.Background(), &sliceSource{chunks: chunksFor("a.mp4", "x")})

	assert.NoError(t, err)
}
