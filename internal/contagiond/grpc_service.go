package contagiond

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// SweepServiceName is the fully qualified gRPC service name.
const SweepServiceName = "contagion.v1.SweepService"

// SweepServiceServer is the server API for contagion.v1.SweepService.
// Every message is a google.protobuf.Struct carrying the same fields as the
// HTTP API.
type SweepServiceServer interface {
	CreateSweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCurve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type sweepMethod func(SweepServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call sweepMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SweepServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + SweepServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SweepServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SweepServiceDesc describes contagion.v1.SweepService for grpc.Server.
var SweepServiceDesc = grpc.ServiceDesc{
	ServiceName: SweepServiceName,
	HandlerType: (*SweepServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSweep", SweepServiceServer.CreateSweep),
		unaryHandler("StartSweep", SweepServiceServer.StartSweep),
		unaryHandler("StopSweep", SweepServiceServer.StopSweep),
		unaryHandler("GetSweep", SweepServiceServer.GetSweep),
		unaryHandler("GetCurve", SweepServiceServer.GetCurve),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contagion/v1/sweep.proto",
}

// RegisterSweepServiceServer registers srv on s.
func RegisterSweepServiceServer(s grpc.ServiceRegistrar, srv SweepServiceServer) {
	s.RegisterService(&SweepServiceDesc, srv)
}

// SweepServiceClient is a thin client for contagion.v1.SweepService.
type SweepServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSweepServiceClient(cc grpc.ClientConnInterface) *SweepServiceClient {
	return &SweepServiceClient{cc: cc}
}

func (c *SweepServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+SweepServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SweepServiceClient) CreateSweep(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateSweep", in, opts...)
}

func (c *SweepServiceClient) StartSweep(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartSweep", in, opts...)
}

func (c *SweepServiceClient) StopSweep(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopSweep", in, opts...)
}

func (c *SweepServiceClient) GetSweep(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetSweep", in, opts...)
}

func (c *SweepServiceClient) GetCurve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCurve", in, opts...)
}
