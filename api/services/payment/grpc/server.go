package grpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	paymentapp "github.com/aimploy/payments/api/services/payment/app"
)

// Signature headers forwarded from HTTP into incoming metadata.
const (
	RazorpaySignatureHeader = "x-razorpay-signature"
	StripeSignatureHeader   = "stripe-signature"
)

// Server adapts paymentapp.Service to PaymentServiceServer.
type Server struct {
	svc paymentapp.Service
}

var _ PaymentServiceServer = (*Server)(nil)

// New returns a Server. A nil service answers every call with Unavailable.
func New(svc paymentapp.Service) *Server {
	return &Server{svc: svc}
}

var errNotReady = status.Error(codes.Unavailable, "payment service is not initialized")

// unary decodes in into Req, runs call and encodes its result.
func unary[Req, Resp any](ctx context.Context, s *Server, in *structpb.Struct, call func(context.Context, Req) (Resp, error)) (*structpb.Struct, error) {
	if s.svc == nil {
		return nil, errNotReady
	}
	var req Req
	if err := decode(in, &req); err != nil {
		return nil, toStatus(err)
	}
	resp, err := call(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resp)
}

func (s *Server) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return unary(ctx, s, in, func(ctx context.Context, req paymentapp.CreateOrderRequest) (paymentapp.Order, error) {
		return s.svc.CreateOrder(ctx, req)
	})
}

func (s *Server) VerifyPayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return unary(ctx, s, in, func(ctx context.Context, req paymentapp.VerifyPaymentRequest) (paymentapp.VerifyPaymentResponse, error) {
		return s.svc.VerifyPayment(ctx, req)
	})
}

func (s *Server) CancelSubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return unary(ctx, s, in, func(ctx context.Context, req paymentapp.UserRequest) (paymentapp.CancelSubscriptionResponse, error) {
		return s.svc.CancelSubscription(ctx, req.UserEmail)
	})
}

func (s *Server) GetActiveSubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return unary(ctx, s, in, func(ctx context.Context, req paymentapp.UserRequest) (paymentapp.ActiveSubscription, error) {
		return s.svc.GetActiveSubscription(ctx, req.UserEmail)
	})
}

func (s *Server) ListPlans(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return unary(ctx, s, in, func(ctx context.Context, _ struct{}) (paymentapp.ListPlansResponse, error) {
		return s.svc.ListPlans(ctx)
	})
}

type webhookAck struct {
	Received bool `json:"received"`
}

// RazorpayWebhook verifies and applies a raw Razorpay event. The signature is
// read from the x-razorpay-signature incoming metadata.
func (s *Server) RazorpayWebhook(ctx context.Context, in *httpbody.HttpBody) (*structpb.Struct, error) {
	if s.svc == nil {
		return nil, errNotReady
	}
	if err := s.svc.HandleRazorpayWebhook(ctx, in.GetData(), firstMetadata(ctx, RazorpaySignatureHeader)); err != nil {
		return nil, toStatus(err)
	}
	return encode(webhookAck{Received: true})
}

// StripeWebhook verifies and applies a raw Stripe event. The signature is read
// from the stripe-signature incoming metadata.
func (s *Server) StripeWebhook(ctx context.Context, in *httpbody.HttpBody) (*structpb.Struct, error) {
	if s.svc == nil {
		return nil, errNotReady
	}
	if err := s.svc.HandleStripeWebhook(ctx, in.GetData(), firstMetadata(ctx, StripeSignatureHeader)); err != nil {
		return nil, toStatus(err)
	}
	return encode(webhookAck{Received: true})
}

// Health pings the database.
func (s *Server) Health(ctx context.Context) error {
	if s.svc == nil {
		return errNotReady
	}
	if err := s.svc.Ping(ctx); err != nil {
		slog.Error("health check failed", "err", err)
		return status.Error(codes.Unavailable, "database unavailable")
	}
	return nil
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// decode maps a Struct onto dst, rejecting unknown fields.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return invalidBody("json")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &paymentapp.ValidationError{Fields: []paymentapp.FieldError{{Field: typeErr.Field, Rule: "type=" + typeErr.Type.String()}}}
		}
		return invalidBody(err.Error())
	}
	return nil
}

func invalidBody(rule string) error {
	return &paymentapp.ValidationError{Fields: []paymentapp.FieldError{{Field: "body", Rule: rule}}}
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// UnaryLogger logs every unary call with its status code and duration.
func UnaryLogger(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	level := slog.LevelInfo
	if code == codes.Internal || code == codes.Unavailable || code == codes.Unknown {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "grpc call", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
	return resp, err
}
