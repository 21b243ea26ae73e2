package rpc

// VideoChunk is one frame of an UploadMedia stream. The server reads
// FileName, TotalChunks and ContentHash from the first chunk only.
type VideoChunk struct {
	FileName    string `json:"file_name,omitempty"`
	Data        []byte `json:"data"`
	TotalChunks uint32 `json:"total_chunks,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

type UploadStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DedupRequest struct {
	Hash string `json:"hash"`
}

const (
	MsgUploadCompleted    = "Upload completed."
	MsgQueueFull          = "Queue is full."
	MsgUploadInProgress   = "Upload already in progress."
	MsgUploadIncomplete   = "Video upload incomplete."
	MsgNotConfigured      = "Service not configured."
	MsgContentUploaded    = "Content already uploaded."
	MsgHashMismatch       = "Content hash mismatch."
	MsgEnqueueFailed      = "Failed to add video to the queue."
	MsgContentNotUploaded = "Content not uploaded yet."
)
