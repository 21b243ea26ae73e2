package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/bnema/vidq/internal/domain"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/service"
	"github.com/bnema/vidq/internal/validation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Ingester is the part of the ingest service the transport needs.
type Ingester interface {
	Ingest(ctx context.Context, src service.ChunkSource) (*domain.Job, error)
	IsDuplicate(hash string) bool
}

type Server struct {
	ingest Ingester
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(ingest Ingester) *Server {
	s := &Server{
		ingest: ingest,
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(unaryLogger),
			grpc.ChainStreamInterceptor(streamLogger),
		),
		health: health.NewServer(),
	}

	RegisterMediaUploadServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	logger.Info.Printf("gRPC server listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Drain marks the service as not serving and waits for open streams to end.
func (s *Server) Drain() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) UploadMedia(stream UploadMediaServer) error {
	_, err := s.ingest.Ingest(stream.Context(), &chunkSource{stream: stream})
	reply := statusFor(err)
	if reply == nil {
		logger.Warn.Printf("upload stream failed: %v", err)
		if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
			return err
		}
		if ctxErr := stream.Context().Err(); ctxErr != nil {
			return status.FromContextError(ctxErr).Err()
		}
		return status.Error(codes.Aborted, err.Error())
	}
	return stream.SendAndClose(reply)
}

func (s *Server) CheckDuplicate(ctx context.Context, req *DedupRequest) (*UploadStatus, error) {
	hash, err := validation.Hash(req.Hash)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.ingest.IsDuplicate(hash) {
		return &UploadStatus{Success: false, Message: MsgContentUploaded}, nil
	}
	return &UploadStatus{Success: true, Message: MsgContentNotUploaded}, nil
}

// statusFor maps an ingest outcome to the reply sent to the producer. It
// returns nil for transport failures, which end the stream with an error.
func statusFor(err error) *UploadStatus {
	var msg string
	switch {
	case err == nil:
		return &UploadStatus{Success: true, Message: MsgUploadCompleted}
	case errors.Is(err, domain.ErrEnqueueFailed):
		msg = MsgEnqueueFailed
	case errors.Is(err, domain.ErrQueueFull):
		msg = MsgQueueFull
	case errors.Is(err, domain.ErrDuplicateUpload):
		msg = MsgUploadInProgress
	case errors.Is(err, domain.ErrIncompleteUpload):
		msg = MsgUploadIncomplete
	case errors.Is(err, domain.ErrNotConfigured):
		msg = MsgNotConfigured
	case errors.Is(err, domain.ErrDuplicateContent):
		msg = MsgContentUploaded
	case errors.Is(err, domain.ErrHashMismatch):
		msg = MsgHashMismatch
	default:
		return nil
	}
	return &UploadStatus{Success: false, Message: msg}
}

type chunkSource struct {
	stream UploadMediaServer
}

func (c *chunkSource) Recv() (*domain.Chunk, error) {
	m, err := c.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &domain.Chunk{
		FileName:    m.FileName,
		Data:        m.Data,
		TotalChunks: m.TotalChunks,
		ContentHash: m.ContentHash,
	}, nil
}

func unaryLogger(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logger.Debug.Printf("%s %s in %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Millisecond))
	return resp, err
}

func streamLogger(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	logger.Debug.Printf("%s %s in %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Millisecond))
	return err
}

var _ MediaUploadServer = (*Server)(nil)
