package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to a MediaUpload server over plaintext gRPC with the JSON codec.
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type UploadMediaClient interface {
	Send(*VideoChunk) error
	CloseAndRecv() (*UploadStatus, error)
}

type uploadMediaClient struct {
	grpc.ClientStream
}

func (x *uploadMediaClient) Send(m *VideoChunk) error {
	return x.ClientStream.SendMsg(m)
}

func (x *uploadMediaClient) CloseAndRecv() (*UploadStatus, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(UploadStatus)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// UploadMedia opens a client stream. Send the chunks, then CloseAndRecv.
func (c *Client) UploadMedia(ctx context.Context) (UploadMediaClient, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], uploadMediaMethod)
	if err != nil {
		return nil, err
	}
	return &uploadMediaClient{stream}, nil
}

// CheckDuplicate reports Success=true when the server has not stored hash.
func (c *Client) CheckDuplicate(ctx context.Context, hash string) (*UploadStatus, error) {
	out := new(UploadStatus)
	if err := c.conn.Invoke(ctx, checkDuplicateMethod, &DedupRequest{Hash: hash}, out); err != nil {
		return nil, err
	}
	return out, nil
}
