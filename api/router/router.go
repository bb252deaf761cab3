package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	bootstrap "github.com/aimploy/payments/api/bootstrap"
	config "github.com/aimploy/payments/api/config"
	grpcserver "github.com/aimploy/payments/api/services/payment/grpc"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "GET, POST, OPTIONS"
)

// NewRouter returns the central HTTP router for the API using grpc-gateway.
// It maps the gRPC PaymentService onto the JSON routes and wraps them with
// CORS and request logging.
func NewRouter() http.Handler {
	// Initialize app dependencies (non-fatal if it fails here; RPCs answer Unavailable).
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}

	mux := runtime.NewServeMux(
		runtime.WithIncomingHeaderMatcher(grpcserver.HeaderMatcher),
		runtime.WithErrorHandler(grpcserver.ErrorHandler),
	)
	srv := grpcserver.New(bootstrap.GetPaymentService())
	if err := grpcserver.RegisterGateway(context.Background(), mux, srv); err != nil {
		slog.Error("failed to register grpc-gateway", "err", err)
	}
	return withLogging(withCORS(allowedOrigin(), mux))
}

func allowedOrigin() string {
	if config.AppConfig != nil && config.AppConfig.AllowedOrigin != "" {
		return config.AppConfig.AllowedOrigin
	}
	return "*"
}

// withCORS answers preflight requests itself and decorates every response.
func withCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		if origin != "*" {
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
