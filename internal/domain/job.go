package domain

import (
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
	JobStatusAbandoned  JobStatus = "abandoned"
)

// Chunk is one frame of an upload stream. Only the first chunk's FileName,
// TotalChunks and ContentHash are read.
type Chunk struct {
	FileName    string
	Data        []byte
	TotalChunks uint32
	ContentHash string
}

// Job is one upload, from its first chunk to the bytes handed to the
// transcoder. Chunks keep arrival order.
type Job struct {
	ID             string
	OriginalName   string
	Chunks         [][]byte
	ExpectedChunks uint32
	ReceivedChunks uint32
	DeclaredHash   string
	ContentHash    string
	Size           int64
	CreatedAt      time.Time

	// SniffedExt is the container extension detected from the first chunk.
	SniffedExt string
}

func NewJob(originalName string, expectedChunks uint32, declaredHash string) *Job {
	return &Job{
		ID:             uuid.NewString(),
		OriginalName:   originalName,
		ExpectedChunks: expectedChunks,
		DeclaredHash:   strings.ToLower(strings.TrimSpace(declaredHash)),
		CreatedAt:      time.Now(),
	}
}

// AddChunk appends data as the next chunk. The slice is retained, so callers
// must not reuse its backing array.
func (j *Job) AddChunk(data []byte) {
	j.Chunks = append(j.Chunks, data)
	j.ReceivedChunks++
	j.Size += int64(len(data))
}

// IsComplete reports whether every announced chunk arrived. A job that
// announced zero chunks is complete once it holds at least one.
func (j *Job) IsComplete() bool {
	if j.ExpectedChunks == 0 {
		return j.ReceivedChunks > 0
	}
	return j.ReceivedChunks >= j.ExpectedChunks
}

// WriteTo writes the chunks in arrival order.
func (j *Job) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for i, chunk := range j.Chunks {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	return written, nil
}

// ReleaseChunks drops the in-memory payload once it is on disk.
func (j *Job) ReleaseChunks() {
	j.Chunks = nil
}

// Digest computes the content hash over the assembled bytes and stores it.
func (j *Job) Digest() string {
	h, _ := blake2b.New256(nil)
	_, _ = j.WriteTo(h)
	j.ContentHash = hex.EncodeToString(h.Sum(nil))
	return j.ContentHash
}

// Ext returns the lowercased extension of the declared name, falling back
// to the sniffed container and then to .mp4.
func (j *Job) Ext() string {
	ext := strings.ToLower(filepath.Ext(j.OriginalName))
	if ext != "" && len(ext) <= 8 {
		return ext
	}
	if j.SniffedExt != "" {
		return j.SniffedExt
	}
	return ".mp4"
}

// HashReader returns the hex content hash of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Record is the ledger view of a job.
type Record struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	ContentHash  string    `json:"content_hash"`
	ChunkCount   int64     `json:"chunk_count"`
	Size         int64     `json:"size"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message"`
	ThumbPath    string    `json:"thumb_path"`
	PreviewPath  string    `json:"preview_path"`
	OutputPath   string    `json:"output_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewRecord(j *Job) *Record {
	return &Record{
		ID:           j.ID,
		OriginalName: j.OriginalName,
		ContentHash:  j.ContentHash,
		ChunkCount:   int64(j.ReceivedChunks),
		Size:         j.Size,
		Status:       JobStatusQueued,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.CreatedAt,
	}
}

// Preview is one entry of the previews listing.
type Preview struct {
	File         string    `json:"file"`
	JobID        string    `json:"job_id"`
	OriginalName string    `json:"original_name,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Status       JobStatus `json:"status,omitempty"`
}
