package port

import "github.com/bnema/vidq/internal/domain"

type JobLedger interface {
	Save(r *domain.Record) error
	Get(id string) (*domain.Record, error)
	ListAll() ([]*domain.Record, error)
	UpdateStatus(id string, status domain.JobStatus, errMsg string) error
	UpdateOutputs(r *domain.Record) error
	ResetStalled() (int64, error)
}
