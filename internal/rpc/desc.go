// Package rpc exposes the decoder over gRPC. Messages travel as
// google.protobuf.Struct so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "subcrack.v1.Decoder"

const (
	methodDecode    = "/" + ServiceName + "/Decode"
	methodScore     = "/" + ServiceName + "/Score"
	methodLanguages = "/" + ServiceName + "/Languages"
)

// #region server-api

// DecoderServer is the server API for the Decoder service.
type DecoderServer interface {
	Decode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Languages(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDecoderServer registers srv on s.
func RegisterDecoderServer(s grpc.ServiceRegistrar, srv DecoderServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the Decoder service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DecoderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: unaryHandler(methodDecode, DecoderServer.Decode)},
		{MethodName: "Score", Handler: unaryHandler(methodScore, DecoderServer.Score)},
		{MethodName: "Languages", Handler: unaryHandler(methodLanguages, DecoderServer.Languages)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "subcrack/v1/decoder.proto",
}

type unaryMethod func(DecoderServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DecoderServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DecoderServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion server-api

// #region client-api

// DecoderClient is the client API for the Decoder service.
type DecoderClient interface {
	Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Score(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Languages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type decoderClient struct {
	cc grpc.ClientConnInterface
}

// NewDecoderClient returns a client over cc.
func NewDecoderClient(cc grpc.ClientConnInterface) DecoderClient {
	return &decoderClient{cc: cc}
}

func (c *decoderClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *decoderClient) Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDecode, in, opts)
}

func (c *decoderClient) Score(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodScore, in, opts)
}

func (c *decoderClient) Languages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodLanguages, in, opts)
}

// #endregion client-api
