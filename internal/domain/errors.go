package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrQueueFull         = errors.New("queue is full")
	ErrQueueClosed       = errors.New("queue is closed")
	ErrEnqueueFailed     = errors.New("failed to add video to the queue")
	ErrDuplicateUpload   = errors.New("upload already in progress")
	ErrIncompleteUpload  = errors.New("upload incomplete")
	ErrNotConfigured     = errors.New("service not configured")
	ErrAlreadyConfigured = errors.New("service already configured")
	ErrDuplicateContent  = errors.New("content already uploaded")
	ErrHashMismatch      = errors.New("content hash mismatch")
	ErrNoEncoder         = errors.New("no usable video encoder")
)
