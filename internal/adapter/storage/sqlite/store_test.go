package sqlite

import (
	"testing"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestRecord(id, name string) *domain.Record {
	return &domain.Record{
		ID:           id,
		OriginalName: name,
		ContentHash:  "abc123",
		ChunkCount:   4,
		Size:         1024,
		Status:       domain.JobStatusQueued,
	}
}

func TestStoreSaveGet(t *testing.T) {
	store := newTestStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := newTestRecord("job-1", "clip.mp4")
	rec.CreatedAt = created

	require.NoError(t, store.Save(rec))

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", got.OriginalName)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.Equal(t, int64(4), got.ChunkCount)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStoreSaveDuplicateID(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(newTestRecord("job-1", "a.mp4")))

	err := store.Save(newTestRecord("job-1", "b.mp4"))

	assert.Error(t, err)
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreListAllNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		rec := newTestRecord(id, id+".mp4")
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(rec))
	}

	list, err := store.ListAll()

	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestStoreUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(newTestRecord("job-1", "a.mp4")))

	require.NoError(t, store.UpdateStatus("job-1", domain.JobStatusFailed, "boom"))

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)

	assert.ErrorIs(t, store.UpdateStatus("missing", domain.JobStatusDone, ""), domain.ErrNotFound)
}

func TestStoreUpdateOutputs(t *testing.T) {
	store := newTestStore(t)
	rec := newTestRecord("job-1", "a.mp4")
	require.NoError(t, store.Save(rec))

	rec.ThumbPath = "Previews/job-1.png"
	rec.PreviewPath = "Previews/job-1.mp4"
	rec.OutputPath = "UploadedVideos/job-1.mp4"
	rec.Status = domain.JobStatusDone
	require.NoError(t, store.UpdateOutputs(rec))

	got, err := store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "Previews/job-1.png", got.ThumbPath)
	assert.Equal(t, "Previews/job-1.mp4", got.PreviewPath)
	assert.Equal(t, "UploadedVideos/job-1.mp4", got.OutputPath)
	assert.Equal(t, domain.JobStatusDone, got.Status)
}

func TestStoreResetStalled(t *testing.T) {
	store := newTestStore(t)
	statuses := map[string]domain.JobStatus{
		"queued":     domain.JobStatusQueued,
		"processing": domain.JobStatusProcessing,
		"done":       domain.JobStatusDone,
		"failed":     domain.JobStatusFailed,
	}
	for id, st := range statuses {
		rec := newTestRecord(id, id+".mp4")
		rec.Status = st
		require.NoError(t, store.Save(rec))
	}

	n, err := store.ResetStalled()

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	for id, want := range map[string]domain.JobStatus{
		"queued":     domain.JobStatusAbandoned,
		"processing": domain.JobStatusAbandoned,
		"done":       domain.JobStatusDone,
		"failed":     domain.JobStatusFailed,
	} {
		got, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(newTestRecord("job-1", "a.mp4")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", got.OriginalName)
}
