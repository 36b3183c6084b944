package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName      = "vitals.v1.SampleService"
	PushSampleMethod = "/" + ServiceName + "/PushSample"
)

// SampleServiceServer is implemented by the server's receiver.
type SampleServiceServer interface {
	PushSample(ctx context.Context, report *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSampleServiceServer registers srv on s.
func RegisterSampleServiceServer(s grpc.ServiceRegistrar, srv SampleServiceServer) {
	s.RegisterService(&sampleServiceDesc, srv)
}

var sampleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SampleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushSample", Handler: pushSampleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vitals/v1/sample.proto",
}

func pushSampleHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SampleServiceServer).PushSample(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PushSampleMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SampleServiceServer).PushSample(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SampleServiceClient calls the SampleService over a gRPC connection.
type SampleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSampleServiceClient wraps cc.
func NewSampleServiceClient(cc grpc.ClientConnInterface) *SampleServiceClient {
	return &SampleServiceClient{cc: cc}
}

// PushSample sends one encoded Report and returns the encoded Ack.
func (c *SampleServiceClient) PushSample(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PushSampleMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
