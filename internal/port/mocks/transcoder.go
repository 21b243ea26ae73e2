package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/vidq/internal/port"
)

type TranscoderMock struct {
	mock.Mock
}

func NewTranscoderMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *TranscoderMock {
	m := &TranscoderMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TranscoderMock) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	args := m.Called(ctx, inputPath, outputPath)
	return args.Error(0)
}

func (m *TranscoderMock) Preview(ctx context.Context, inputPath, outputPath string, seconds int) error {
	args := m.Called(ctx, inputPath, outputPath, seconds)
	return args.Error(0)
}

func (m *TranscoderMock) Compress(ctx context.Context, inputPath, outputPath string) (string, error) {
	args := m.Called(ctx, inputPath, outputPath)
	return args.String(0), args.Error(1)
}

var _ port.Transcoder = (*TranscoderMock)(nil)
