package server

import (
	"context"

	"google.golang.org/grpc"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// Unary builds the descriptor of a unary method served by fn. The request
// is decoded into a fresh *Req by the negotiated codec.
func Unary[Req, Resp any](service, method string, fn func(ctx context.Context, req *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*Req))
			})
		},
	}
}

// ServerStream builds the descriptor of a server-streaming method. fn
// receives the decoded request and a send function.
func ServerStream[Req, Resp any](method string, fn func(ctx context.Context, req *Req, send func(*Resp) error) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(_ any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(stream.Context(), in, func(m *Resp) error { return stream.SendMsg(m) })
		},
	}
}

// anyHandler lets hand-written descriptors register closures: every value
// satisfies it.
type anyHandler interface{}

// Describe assembles a service descriptor from method and stream
// descriptors.
func Describe(service string, methods []grpc.MethodDesc, streams ...grpc.StreamDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*anyHandler)(nil),
		Methods:     methods,
		Streams:     streams,
		Metadata:    service,
	}
}
