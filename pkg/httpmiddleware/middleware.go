// Package httpmiddleware contains the net/http middleware chain of the
// coupon API.
package httpmiddleware

import (
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware is a net/http middleware.
type Middleware = func(http.Handler) http.Handler

// Wrap handler using given middlewares. The first middleware is the
// outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder resolves the route pattern of a request before it is routed.
type RouteFinder func(method string, u *url.URL) (string, bool)

// MakeRouteFinder returns a RouteFinder that matches against routes.
func MakeRouteFinder(routes chi.Routes) RouteFinder {
	return func(method string, u *url.URL) (string, bool) {
		pattern := routes.Find(chi.NewRouteContext(), method, u.Path)
		return pattern, pattern != ""
	}
}

// InjectLogger injects logger into request context.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := zctx.Base(r.Context(), lg)
			if id := RequestIDFromContext(ctx); id != "" {
				ctx = zctx.With(ctx, zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Instrument sets up otelhttp tracing and metrics. Spans of known routes
// are named after the route pattern.
func Instrument(serviceName string, find RouteFinder, m *app.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "",
			otelhttp.WithPropagators(m.TextMapPropagator()),
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if route, ok := find(r.Method, r.URL); ok {
					return serviceName + " " + r.Method + " " + route
				}
				return serviceName + " " + r.Method
			}),
		)
	}
}

// LogRequests logs every request with the context logger once it is
// served.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lg := zctx.From(r.Context())
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			}
			if route, ok := find(r.Method, r.URL); ok {
				fields = append(fields, zap.String("route", route))
			}

			metrics := httpsnoop.CaptureMetrics(next, w, r)
			fields = append(fields,
				zap.Int("status", metrics.Code),
				zap.Int64("written", metrics.Written),
				zap.Duration("duration", metrics.Duration),
			)
			if metrics.Code >= http.StatusInternalServerError {
				lg.Error("Request", fields...)
				return
			}
			lg.Info("Request", fields...)
		})
	}
}

// Labeler adds the http.route attribute to the request span and to the
// otelhttp metrics.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route, ok := find(r.Method, r.URL); ok {
				attr := attribute.String("http.route", route)
				trace.SpanFromContext(r.Context()).SetAttributes(attr)
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(attr)
			}
			next.ServeHTTP(w, r)
		})
	}
}
