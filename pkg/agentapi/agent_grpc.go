// Package agentapi holds the wire contract of the lifecycle agent.
// Messages travel as google.protobuf.Struct so the contract needs no generated message types;
// field layout is owned by the request and response types in internal/common.
package agentapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "lifecycle.v1.AgentService"

	AgentService_Dispatch_FullMethodName       = "/lifecycle.v1.AgentService/Dispatch"
	AgentService_DispatchBatch_FullMethodName  = "/lifecycle.v1.AgentService/DispatchBatch"
	AgentService_ListComponents_FullMethodName = "/lifecycle.v1.AgentService/ListComponents"
)

// AgentServiceClient is the client API for the agent service.
type AgentServiceClient interface {
	Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DispatchBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListComponents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc}
}

func (c *agentServiceClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AgentService_Dispatch_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) DispatchBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AgentService_DispatchBatch_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) ListComponents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AgentService_ListComponents_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentServiceServer is the server API for the agent service.
// Implementations must embed UnimplementedAgentServiceServer.
type AgentServiceServer interface {
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DispatchBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListComponents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedAgentServiceServer()
}

type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Dispatch not implemented")
}
func (UnimplementedAgentServiceServer) DispatchBatch(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DispatchBatch not implemented")
}
func (UnimplementedAgentServiceServer) ListComponents(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListComponents not implemented")
}
func (UnimplementedAgentServiceServer) mustEmbedUnimplementedAgentServiceServer() {}

func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(AgentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AgentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AgentServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AgentService_ServiceDesc is the grpc.ServiceDesc for the agent service.
var AgentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    unaryHandler(AgentService_Dispatch_FullMethodName, AgentServiceServer.Dispatch),
		},
		{
			MethodName: "DispatchBatch",
			Handler:    unaryHandler(AgentService_DispatchBatch_FullMethodName, AgentServiceServer.DispatchBatch),
		},
		{
			MethodName: "ListComponents",
			Handler:    unaryHandler(AgentService_ListComponents_FullMethodName, AgentServiceServer.ListComponents),
		},
	},
	// No Metadata: the service is not declared in a .proto file, there is no file descriptor
	// for reflection to point at.
	Streams: []grpc.StreamDesc{},
}
