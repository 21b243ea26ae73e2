package service

import (
	"sync"

	"github.com/bnema/vidq/internal/domain"
)

// Admission bounds reserved + queued + in-flight uploads by capacity.
// A reservation lives from an upload's first chunk until its enqueue
// resolves or the upload fails.
//
// It also holds content claims: a hash is claimed from the end of its
// upload until the job leaves the pipeline, which covers the window
// before the dedup table learns about it.
type Admission struct {
	mu       sync.Mutex
	reserved map[string]struct{}
	contents map[string]struct{}
	capacity int
	depth    func() int
}

// NewAdmission builds a controller whose queued work is reported by depth.
func NewAdmission(capacity int, depth func() int) *Admission {
	return &Admission{
		reserved: make(map[string]struct{}),
		contents: make(map[string]struct{}),
		capacity: capacity,
		depth:    depth,
	}
}

func (a *Admission) TryAdmit(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.reserved)+a.depth() >= a.capacity {
		return domain.ErrQueueFull
	}
	if _, ok := a.reserved[name]; ok {
		return domain.ErrDuplicateUpload
	}
	a.reserved[name] = struct{}{}
	return nil
}

func (a *Admission) Release(name string) {
	a.mu.Lock()
	delete(a.reserved, name)
	a.mu.Unlock()
}

// ClaimContent claims hash for one upload. A hash already claimed by an
// upload still in the pipeline returns domain.ErrDuplicateContent.
func (a *Admission) ClaimContent(hash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.contents[hash]; ok {
		return domain.ErrDuplicateContent
	}
	a.contents[hash] = struct{}{}
	return nil
}

func (a *Admission) ReleaseContent(hash string) {
	a.mu.Lock()
	delete(a.contents, hash)
	a.mu.Unlock()
}

func (a *Admission) ContentClaimed(hash string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.contents[hash]
	return ok
}

func (a *Admission) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}

func (a *Admission) Capacity() int {
	return a.capacity
}
