package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/port"
)

type JobLedgerMock struct {
	mock.Mock
}

func NewJobLedgerMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *JobLedgerMock {
	m := &JobLedgerMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *JobLedgerMock) Save(r *domain.Record) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *JobLedgerMock) Get(id string) (*domain.Record, error) {
	args := m.Called(id)
	rec, _ := args.Get(0).(*domain.Record)
	return rec, args.Error(1)
}

func (m *JobLedgerMock) ListAll() ([]*domain.Record, error) {
	args := m.Called()
	recs, _ := args.Get(0).([]*domain.Record)
	return recs, args.Error(1)
}

func (m *JobLedgerMock) UpdateStatus(id string, status domain.JobStatus, errMsg string) error {
	args := m.Called(id, status, errMsg)
	return args.Error(0)
}

func (m *JobLedgerMock) UpdateOutputs(r *domain.Record) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *JobLedgerMock) ResetStalled() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

var _ port.JobLedger = (*JobLedgerMock)(nil)
