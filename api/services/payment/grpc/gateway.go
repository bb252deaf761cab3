package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxBodyBytes bounds request bodies, webhooks included. Larger bodies are
// rejected with 413.
const maxBodyBytes = 1 << 20

type route struct {
	method  string
	pattern string
	rpc     string
	call    func(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGateway maps the HTTP API onto srv. JSON routes run through the same
// methods as gRPC callers; webhook routes wrap the raw body in an HttpBody.
func RegisterGateway(ctx context.Context, mux *runtime.ServeMux, srv *Server) error {
	routes := []route{
		{http.MethodPost, "/api/create-order", "CreateOrder", srv.CreateOrder},
		{http.MethodPost, "/api/verify-payment", "VerifyPayment", srv.VerifyPayment},
		{http.MethodPost, "/api/cancel-subscription", "CancelSubscription", srv.CancelSubscription},
		{http.MethodPost, "/api/active-subscription", "GetActiveSubscription", srv.GetActiveSubscription},
		{http.MethodGet, "/api/plans", "ListPlans", srv.ListPlans},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, jsonHandler(mux, rt)); err != nil {
			return err
		}
	}

	webhooks := []struct {
		pattern string
		rpc     string
		call    func(context.Context, *httpbody.HttpBody) (*structpb.Struct, error)
	}{
		{"/api/razorpay-webhook", "RazorpayWebhook", srv.RazorpayWebhook},
		{"/api/stripe-webhook", "StripeWebhook", srv.StripeWebhook},
	}
	for _, wh := range webhooks {
		if err := mux.HandlePath(http.MethodPost, wh.pattern, rawHandler(mux, wh.pattern, wh.rpc, wh.call)); err != nil {
			return err
		}
	}

	return mux.HandlePath(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if err := srv.Health(r.Context()); err != nil {
			ErrorHandler(r.Context(), mux, outbound(mux, r), w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func jsonHandler(mux *runtime.ServeMux, rt route) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		ctx, err := annotate(mux, r, rt.pattern, rt.rpc)
		if err != nil {
			runtime.HTTPError(r.Context(), mux, outbound(mux, r), w, r, err)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			bodyError(ctx, mux, w, r, err)
			return
		}
		in := &structpb.Struct{}
		if strings.TrimSpace(string(body)) != "" {
			if err := protojson.Unmarshal(body, in); err != nil {
				runtime.HTTPError(ctx, mux, outbound(mux, r), w, r, toStatus(invalidBody("json object")))
				return
			}
		}
		out, err := rt.call(ctx, in)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound(mux, r), w, r, err)
			return
		}
		writeStruct(w, http.StatusOK, out)
	}
}

func rawHandler(mux *runtime.ServeMux, pattern, rpc string, call func(context.Context, *httpbody.HttpBody) (*structpb.Struct, error)) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		ctx, err := annotate(mux, r, pattern, rpc)
		if err != nil {
			runtime.HTTPError(r.Context(), mux, outbound(mux, r), w, r, err)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			bodyError(ctx, mux, w, r, err)
			return
		}
		out, err := call(ctx, &httpbody.HttpBody{ContentType: r.Header.Get("Content-Type"), Data: body})
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound(mux, r), w, r, err)
			return
		}
		writeStruct(w, http.StatusOK, out)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func bodyError(ctx context.Context, mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
		return
	}
	runtime.HTTPError(ctx, mux, outbound(mux, r), w, r, status.Error(codes.InvalidArgument, "unreadable body"))
}

// annotate copies matched headers into incoming gRPC metadata.
func annotate(mux *runtime.ServeMux, r *http.Request, pattern, rpc string) (context.Context, error) {
	return runtime.AnnotateIncomingContext(r.Context(), mux, r, fullMethod(rpc), runtime.WithHTTPPathPattern(pattern))
}

// HeaderMatcher forwards provider signature headers alongside the defaults.
func HeaderMatcher(key string) (string, bool) {
	switch k := strings.ToLower(key); k {
	case RazorpaySignatureHeader, StripeSignatureHeader:
		return k, true
	}
	return runtime.DefaultHeaderMatcher(key)
}

type violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type errorBody struct {
	Error  string      `json:"error"`
	Fields []violation `json:"fields,omitempty"`
}

// ErrorHandler renders errors as {"error": message} with the HTTP status of the
// gRPC code. It is installed with runtime.WithErrorHandler.
func ErrorHandler(ctx context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	st := status.Convert(err)
	code := runtime.HTTPStatusFromCode(st.Code())
	body := errorBody{Error: st.Message()}
	for _, fv := range fieldViolations(st) {
		body.Fields = append(body.Fields, violation{Field: fv.GetField(), Rule: fv.GetDescription()})
	}
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", st.Code().String(), "err", st.Message())
	}
	writeJSON(w, code, body)
}

func writeStruct(w http.ResponseWriter, code int, out *structpb.Struct) {
	b, err := protojson.Marshal(out)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "encode response"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func outbound(mux *runtime.ServeMux, r *http.Request) runtime.Marshaler {
	_, m := runtime.MarshalerForRequest(mux, r)
	return m
}
