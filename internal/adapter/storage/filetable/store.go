// Package filetable persists the dedup table as "<hash>:<filename>" lines.
package filetable

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/port"
)

const FileName = "fileTable.txt"

// Store is the process-wide hash to filename table. A single mutex covers
// reads, inserts and the file rewrite that follows each insert.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// maxLineLen bounds a table line. Longer lines are skipped on load.
const maxLineLen = 4096

// NewStore loads the table at path. A missing file is an empty table.
func NewStore(path string) (*Store, error) {
	store := &Store{
		path:    path,
		entries: make(map[string]string),
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// Load replaces the in-memory table with the file contents. A missing file
// is an empty table; malformed or overlong lines are skipped.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = make(map[string]string)
			return nil
		}
		return fmt.Errorf("load file table: %w", err)
	}
	defer f.Close() //nolint:errcheck

	entries := make(map[string]string)
	skipped := 0
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if hash, name, ok := parseLine(line); ok {
				entries[hash] = name
			} else if strings.TrimSpace(line) != "" {
				skipped++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("load file table: %w", err)
		}
	}
	if skipped > 0 {
		logger.Warn.Printf("file table %s: skipped %d unreadable lines", s.path, skipped)
	}
	s.entries = entries
	return nil
}

func parseLine(line string) (hash, name string, ok bool) {
	if len(line) > maxLineLen {
		return "", "", false
	}
	hash, name, ok = strings.Cut(strings.TrimSpace(line), ":")
	if !ok || hash == "" || name == "" {
		return "", "", false
	}
	return hash, name, true
}

// Quarantine moves the table at path aside so a fresh one can take its
// place, and returns where it went. Nothing is moved when path is absent.
func Quarantine(path string) (string, error) {
	aside := fmt.Sprintf("%s.unreadable-%s", path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(path, aside); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("quarantine file table: %w", err)
	}
	return aside, nil
}

// Open loads the table at path. When the file exists but cannot be read it
// is quarantined first and an empty table takes its place; the returned
// string is then the quarantine path. The unreadable file is never
// overwritten.
func Open(path string) (*Store, string, error) {
	store, err := NewStore(path)
	if err == nil {
		return store, "", nil
	}
	aside, qerr := Quarantine(path)
	if qerr != nil {
		return nil, "", fmt.Errorf("%w: %w", err, qerr)
	}
	store, err = NewStore(path)
	if err != nil {
		return nil, aside, err
	}
	return store, aside, nil
}

// save rewrites the whole file. Caller holds s.mu.
func (s *Store) save() error {
	hashes := make([]string, 0, len(s.entries))
	for h := range s.entries {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	var buf bytes.Buffer
	for _, h := range hashes {
		fmt.Fprintf(&buf, "%s:%s\n", h, s.entries[h])
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *Store) Lookup(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.entries[hash]
	return name, ok
}

// Insert records hash -> filename. Records are never replaced: inserting a
// known hash returns domain.ErrDuplicateContent and leaves the table as is.
func (s *Store) Insert(hash, filename string) error {
	if hash == "" || strings.ContainsAny(hash, ":\r\n") {
		return fmt.Errorf("invalid hash %q", hash)
	}
	if filename == "" || strings.ContainsAny(filename, "\r\n") {
		return fmt.Errorf("invalid filename %q", filename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[hash]; ok {
		return domain.ErrDuplicateContent
	}

	s.entries[hash] = filename
	if err := s.save(); err != nil {
		delete(s.entries, hash)
		return fmt.Errorf("save file table: %w", err)
	}
	return nil
}

// FindByFilename is the reverse lookup used to annotate listings.
func (s *Store) FindByFilename(filename string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, name := range s.entries {
		if name == filename {
			return h, true
		}
	}
	return "", false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ port.DedupStore = (*Store)(nil)
