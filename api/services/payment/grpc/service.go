package grpcserver

import (
	"context"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "aimploy.payments.v1.PaymentService"

// PaymentServiceServer is the gRPC surface of the payment service. Requests and
// responses are google.protobuf.Struct values carrying the same fields as the
// HTTP bodies. Webhooks take the provider's raw body as a google.api.HttpBody,
// since their signatures cover the exact bytes.
type PaymentServiceServer interface {
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyPayment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSubscription(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActiveSubscription(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPlans(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RazorpayWebhook(context.Context, *httpbody.HttpBody) (*structpb.Struct, error)
	StripeWebhook(context.Context, *httpbody.HttpBody) (*structpb.Struct, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unaryHandler[Req any](name string, call func(PaymentServiceServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PaymentServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PaymentServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes PaymentService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateOrder", PaymentServiceServer.CreateOrder),
		unaryHandler("VerifyPayment", PaymentServiceServer.VerifyPayment),
		unaryHandler("CancelSubscription", PaymentServiceServer.CancelSubscription),
		unaryHandler("GetActiveSubscription", PaymentServiceServer.GetActiveSubscription),
		unaryHandler("ListPlans", PaymentServiceServer.ListPlans),
		unaryHandler("RazorpayWebhook", PaymentServiceServer.RazorpayWebhook),
		unaryHandler("StripeWebhook", PaymentServiceServer.StripeWebhook),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aimploy/payments/v1/payment_service.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv PaymentServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// PaymentServiceClient calls PaymentService over a client connection.
type PaymentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentServiceClient(cc grpc.ClientConnInterface) *PaymentServiceClient {
	return &PaymentServiceClient{cc: cc}
}

func (c *PaymentServiceClient) invoke(ctx context.Context, name string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentServiceClient) CreateOrder(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateOrder", in, opts...)
}

func (c *PaymentServiceClient) VerifyPayment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "VerifyPayment", in, opts...)
}

func (c *PaymentServiceClient) CancelSubscription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CancelSubscription", in, opts...)
}

func (c *PaymentServiceClient) GetActiveSubscription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetActiveSubscription", in, opts...)
}

func (c *PaymentServiceClient) ListPlans(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListPlans", in, opts...)
}

// RazorpayWebhook delivers a raw Razorpay event. The signature travels in the
// x-razorpay-signature outgoing metadata.
func (c *PaymentServiceClient) RazorpayWebhook(ctx context.Context, in *httpbody.HttpBody, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RazorpayWebhook", in, opts...)
}

// StripeWebhook delivers a raw Stripe event. The signature travels in the
// stripe-signature outgoing metadata.
func (c *PaymentServiceClient) StripeWebhook(ctx context.Context, in *httpbody.HttpBody, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StripeWebhook", in, opts...)
}
