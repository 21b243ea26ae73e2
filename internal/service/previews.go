package service

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/port"
)

// Catalog answers listing queries over the previews directory.
type Catalog struct {
	layout Layout
	ledger port.JobLedger
	dedup  port.DedupStore
}

func NewCatalog(layout Layout, ledger port.JobLedger, dedup port.DedupStore) *Catalog {
	return &Catalog{layout: layout, ledger: ledger, dedup: dedup}
}

// Previews lists preview files with extension ext, each joined with its
// ledger record and dedup entry where those exist. A missing directory is
// an empty listing.
func (c *Catalog) Previews(ext string) ([]domain.Preview, error) {
	entries, err := os.ReadDir(c.layout.Previews)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Preview{}, nil
		}
		return nil, err
	}

	result := make([]domain.Preview, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		result = append(result, c.describe(entry.Name()))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].File < result[j].File })
	return result, nil
}

func (c *Catalog) describe(file string) domain.Preview {
	jobID := strings.TrimSuffix(file, filepath.Ext(file))
	p := domain.Preview{File: file, JobID: jobID}

	rec, err := c.ledger.Get(jobID)
	switch {
	case err == nil:
		p.OriginalName = rec.OriginalName
		p.ContentHash = rec.ContentHash
		p.Status = rec.Status
	case !errors.Is(err, domain.ErrNotFound):
		logger.Warn.Printf("lookup job %s: %v", jobID, err)
	}

	if hash, ok := c.dedup.FindByFilename(jobID + ".mp4"); ok {
		p.ContentHash = hash
	}
	return p
}

// Job returns the ledger record for id.
func (c *Catalog) Job(id string) (*domain.Record, error) {
	return c.ledger.Get(id)
}

// Jobs returns every ledger record, newest first.
func (c *Catalog) Jobs() ([]*domain.Record, error) {
	return c.ledger.ListAll()
}
