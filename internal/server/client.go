package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Dial connects to an edublin gRPC server with the json codec selected for
// every call.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

// Invoke performs one unary call and decodes the reply into a new *Resp.
func Invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe opens a server stream and returns a receive function that
// yields io.EOF when the server ends it.
func Subscribe[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req *Req, opts ...grpc.CallOption) (func() (*Resp, error), error) {
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := cc.NewStream(ctx, desc, "/"+service+"/"+method, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return func() (*Resp, error) {
		out := new(Resp)
		if err := stream.RecvMsg(out); err != nil {
			return nil, err
		}
		return out, nil
	}, nil
}

// WithSession attaches a bearer token to outgoing calls.
func WithSession(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
