package evaluation

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// The evaluation service exchanges structpb.Struct messages, so no generated
// code is needed on either side:
//
//	request:  {"epoch": <number>, "metric": <string>}
//	response: {"value": <number>, "metric": <string>}
const (
	ServiceName        = "stopper.v1.EvaluationService"
	EvaluateFullMethod = "/" + ServiceName + "/Evaluate"
	fieldEpoch         = "epoch"
	fieldMetric        = "metric"
	fieldValue         = "value"
	serviceMetadata    = "stopper/v1/evaluation.proto"
)

// #region client-interface
// EvaluationServiceClient is the client API for the evaluation service.
type EvaluationServiceClient interface {
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type evaluationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewEvaluationServiceClient returns a client bound to cc.
func NewEvaluationServiceClient(cc grpc.ClientConnInterface) EvaluationServiceClient {
	return &evaluationServiceClient{cc: cc}
}

func (c *evaluationServiceClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EvaluateFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-interface

// #region server-interface
// EvaluationServiceServer is the server API for the evaluation service.
type EvaluationServiceServer interface {
	Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedEvaluationServiceServer can be embedded for forward compatibility.
type UnimplementedEvaluationServiceServer struct{}

func (UnimplementedEvaluationServiceServer) Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Evaluate not implemented")
}

// RegisterEvaluationServiceServer registers srv on s.
func RegisterEvaluationServiceServer(s grpc.ServiceRegistrar, srv EvaluationServiceServer) {
	s.RegisterService(&evaluationServiceDesc, srv)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluationServiceServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EvaluateFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluationServiceServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var evaluationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler:    evaluateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: serviceMetadata,
}

// #endregion server-interface
