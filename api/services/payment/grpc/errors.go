package grpcserver

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	paymentapp "github.com/aimploy/payments/api/services/payment/app"
	gw "github.com/aimploy/payments/api/services/payment/gateway"
)

// toStatus maps app errors onto gRPC status codes. Internal failures keep
// their detail in the log, not in the response.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var verr *paymentapp.ValidationError
	var perr *gw.ProviderError
	switch {
	case errors.As(err, &verr):
		return validationStatus(verr)
	case errors.Is(err, paymentapp.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, paymentapp.ErrSignature):
		return status.Error(codes.PermissionDenied, paymentapp.ErrSignature.Error())
	case errors.Is(err, paymentapp.ErrUserNotFound),
		errors.Is(err, paymentapp.ErrPlanNotFound),
		errors.Is(err, paymentapp.ErrNoActiveSubscription):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, paymentapp.ErrProvider):
		if errors.As(err, &perr) && perr.ClientFault() {
			return status.Error(codes.FailedPrecondition, err.Error())
		}
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, paymentapp.ErrNotConfigured):
		slog.Error("request needs missing configuration", "err", err)
		return status.Error(codes.Unavailable, "payment service is not configured")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, paymentapp.ErrActivation):
		return status.Error(codes.Internal, paymentapp.ErrActivation.Error())
	case errors.Is(err, paymentapp.ErrDatabase):
		slog.Error("database failure", "err", err)
		return status.Error(codes.Internal, paymentapp.ErrDatabase.Error())
	default:
		slog.Error("unhandled error", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func validationStatus(verr *paymentapp.ValidationError) error {
	st := status.New(codes.InvalidArgument, verr.Error())
	br := &errdetails.BadRequest{}
	for _, f := range verr.Fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f.Field,
			Description: f.Rule,
		})
	}
	detailed, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// fieldViolations extracts BadRequest details from a status.
func fieldViolations(st *status.Status) []*errdetails.BadRequest_FieldViolation {
	var out []*errdetails.BadRequest_FieldViolation
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			out = append(out, br.GetFieldViolations()...)
		}
	}
	return out
}
