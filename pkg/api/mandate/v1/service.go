// Package mandatev1 описывает gRPC-сервис удаленной проверки мандатов.
// Сообщения, google.protobuf.Struct, поэтому сервис не требует кодогенерации.
package mandatev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName        = "mandate.v1.MandateEvaluation"
	EvaluateFullMethod = "/" + ServiceName + "/Evaluate"
	evaluateMethodName = "Evaluate"
)

// MandateEvaluationServer реализуется шлюзом (engine.GRPCEvaluationServer).
type MandateEvaluationServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterMandateEvaluationServer(s grpc.ServiceRegistrar, srv MandateEvaluationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MandateEvaluationServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EvaluateFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MandateEvaluationServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc: ручное описание сервиса для grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MandateEvaluationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: evaluateMethodName, Handler: evaluateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

type MandateEvaluationClient interface {
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type mandateEvaluationClient struct {
	cc grpc.ClientConnInterface
}

func NewMandateEvaluationClient(cc grpc.ClientConnInterface) MandateEvaluationClient {
	return &mandateEvaluationClient{cc: cc}
}

func (c *mandateEvaluationClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EvaluateFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
