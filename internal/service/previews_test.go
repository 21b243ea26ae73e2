package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Previews(t *testing.T) {
	layout := newTestLayout(t)
	for _, name := range []string{"job-b.png", "job-a.png", "job-a.mp4", "orphan.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(layout.Previews, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(layout.Previews, "dir.png"), 0755))

	ledger := mocks.NewJobLedgerMock(t)
	ledger.On("Get", "job-a").Return(&domain.Record{
		ID: "job-a", OriginalName: "beach.mov", ContentHash: "h-ledger", Status: domain.JobStatusDone,
	}, nil)
	ledger.On("Get", "job-b").Return(&domain.Record{
		ID: "job-b", OriginalName: "city.mp4", Status: domain.JobStatusProcessing,
	}, nil)
	ledger.On("Get", "orphan").Return(nil, domain.ErrNotFound)

	dedup := newTestDedup(t)
	require.NoError(t, dedup.Insert("h-table", "job-a.mp4"))

	catalog := NewCatalog(layout, ledger, dedup)
	got, err := catalog.Previews(".png")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, domain.Preview{
		File: "job-a.png", JobID: "job-a", OriginalName: "beach.mov", ContentHash: "h-table", Status: domain.JobStatusDone,
	}, got[0])
	assert.Equal(t, "city.mp4", got[1].OriginalName)
	assert.Empty(t, got[1].ContentHash)
	assert.Equal(t, domain.Preview{File: "orphan.png", JobID: "orphan"}, got[2])
}

func TestCatalog_PreviewsMissingDirectory(t *testing.T) {
	catalog := NewCatalog(NewLayout(t.TempDir()), mocks.NewJobLedgerMock(t), newTestDedup(t))

	got, err := catalog.Previews(".png")

	require.NoError(t, err)
	assert.Empty(t, got)
}
