package ffmpeg

import (
	"os"
	"sync"

	"github.com/bnema/vidq/internal/infrastructure/logger"
)

// Registry tracks live ffmpeg processes so shutdown can kill stragglers.
type Registry struct {
	mu    sync.Mutex
	procs map[int]*os.Process
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[int]*os.Process)}
}

func (r *Registry) add(p *os.Process) {
	r.mu.Lock()
	r.procs[p.Pid] = p
	r.mu.Unlock()
}

func (r *Registry) remove(p *os.Process) {
	r.mu.Lock()
	delete(r.procs, p.Pid)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// KillAll kills every registered process and returns how many were signalled.
// Entries are removed by the goroutine waiting on each process.
func (r *Registry) KillAll() int {
	r.mu.Lock()
	procs := make([]*os.Process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.Unlock()

	killed := 0
	for _, p := range procs {
		if err := p.Kill(); err != nil {
			logger.Debug.Printf("kill pid %d: %v", p.Pid, err)
			continue
		}
		logger.Warn.Printf("killed ffmpeg process pid=%d", p.Pid)
		killed++
	}
	return killed
}
