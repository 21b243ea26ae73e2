package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName          = "mediaupload.MediaUpload"
	uploadMediaMethod    = "/" + ServiceName + "/UploadMedia"
	checkDuplicateMethod = "/" + ServiceName + "/CheckDuplicate"
)

// MediaUploadServer is the server side of the upload service.
type MediaUploadServer interface {
	UploadMedia(UploadMediaServer) error
	CheckDuplicate(context.Context, *DedupRequest) (*UploadStatus, error)
}

type UploadMediaServer interface {
	SendAndClose(*UploadStatus) error
	Recv() (*VideoChunk, error)
	grpc.ServerStream
}

type uploadMediaServer struct {
	grpc.ServerStream
}

func (x *uploadMediaServer) SendAndClose(m *UploadStatus) error {
	return x.ServerStream.SendMsg(m)
}

func (x *uploadMediaServer) Recv() (*VideoChunk, error) {
	m := new(VideoChunk)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func uploadMediaHandler(srv any, stream grpc.ServerStream) error {
	return srv.(MediaUploadServer).UploadMedia(&uploadMediaServer{stream})
}

func checkDuplicateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DedupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MediaUploadServer).CheckDuplicate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: checkDuplicateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MediaUploadServer).CheckDuplicate(ctx, req.(*DedupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MediaUploadServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckDuplicate",
			Handler:    checkDuplicateHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UploadMedia",
			Handler:       uploadMediaHandler,
			ClientStreams: true,
		},
	},
	Metadata: "mediaupload.proto",
}

func RegisterMediaUploadServer(s grpc.ServiceRegistrar, srv MediaUploadServer) {
	s.RegisterService(&serviceDesc, srv)
}
