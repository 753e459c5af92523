package grpcquery

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the query service.
const ServiceName = "envelope.v1.Query"

// QueryServiceServer is the server API of envelope.v1.Query. Every method takes
// and returns the binary codec encoding of the corresponding interfaces query
// type, wrapped in a BytesValue, so no protoc toolchain is needed.
type QueryServiceServer interface {
	Params(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Algorithms(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	RecipientKey(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	KeyByFingerprint(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	ValidateEnvelope(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Recipients(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Envelope(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	AccountSequence(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedQueryServiceServer can be embedded to have forward compatible implementations.
type UnimplementedQueryServiceServer struct{}

func (UnimplementedQueryServiceServer) Params(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Params not implemented")
}
func (UnimplementedQueryServiceServer) Algorithms(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Algorithms not implemented")
}
func (UnimplementedQueryServiceServer) RecipientKey(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method RecipientKey not implemented")
}
func (UnimplementedQueryServiceServer) KeyByFingerprint(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method KeyByFingerprint not implemented")
}
func (UnimplementedQueryServiceServer) ValidateEnvelope(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ValidateEnvelope not implemented")
}
func (UnimplementedQueryServiceServer) Recipients(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Recipients not implemented")
}
func (UnimplementedQueryServiceServer) Envelope(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Envelope not implemented")
}
func (UnimplementedQueryServiceServer) AccountSequence(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method AccountSequence not implemented")
}

// RegisterQueryServiceServer registers the query service on a gRPC server.
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&Query_ServiceDesc, srv)
}

// QueryServiceClient is the client API of envelope.v1.Query.
type QueryServiceClient interface {
	Params(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Algorithms(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	RecipientKey(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	KeyByFingerprint(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	ValidateEnvelope(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Recipients(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Envelope(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	AccountSequence(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type queryServiceClient struct{ cc grpc.ClientConnInterface }

func NewQueryServiceClient(cc grpc.ClientConnInterface) QueryServiceClient {
	return &queryServiceClient{cc: cc}
}

func (c *queryServiceClient) invoke(ctx context.Context, method string, in *wrapperspb.BytesValue, opts []grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queryServiceClient) Params(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "Params", in, opts)
}

func (c *queryServiceClient) Algorithms(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "Algorithms", in, opts)
}

func (c *queryServiceClient) RecipientKey(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "RecipientKey", in, opts)
}

func (c *queryServiceClient) KeyByFingerprint(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "KeyByFingerprint", in, opts)
}

func (c *queryServiceClient) ValidateEnvelope(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "ValidateEnvelope", in, opts)
}

func (c *queryServiceClient) Recipients(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "Recipients", in, opts)
}

func (c *queryServiceClient) Envelope(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "Envelope", in, opts)
}

func (c *queryServiceClient) AccountSequence(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, "AccountSequence", in, opts)
}

// unaryHandler adapts one QueryServiceServer method to a grpc.MethodHandler.
func unaryHandler(method string, call func(QueryServiceServer, context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(QueryServiceServer), ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Query_ServiceDesc is the grpc.ServiceDesc for envelope.v1.Query.
var Query_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Params", Handler: unaryHandler("Params", QueryServiceServer.Params)},
		{MethodName: "Algorithms", Handler: unaryHandler("Algorithms", QueryServiceServer.Algorithms)},
		{MethodName: "RecipientKey", Handler: unaryHandler("RecipientKey", QueryServiceServer.RecipientKey)},
		{MethodName: "KeyByFingerprint", Handler: unaryHandler("KeyByFingerprint", QueryServiceServer.KeyByFingerprint)},
		{MethodName: "ValidateEnvelope", Handler: unaryHandler("ValidateEnvelope", QueryServiceServer.ValidateEnvelope)},
		{MethodName: "Recipients", Handler: unaryHandler("Recipients", QueryServiceServer.Recipients)},
		{MethodName: "Envelope", Handler: unaryHandler("Envelope", QueryServiceServer.Envelope)},
		{MethodName: "AccountSequence", Handler: unaryHandler("AccountSequence", QueryServiceServer.AccountSequence)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "envelope/v1/query.proto",
}
