package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Middleware is a chi middleware that records HTTP request metrics labelled
// by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return RouteMiddleware(RoutePattern)(next)
}

// RouteMiddleware records HTTP request metrics with the route label chosen by
// route. route runs after the handler returns, so it may read state the
// handler stored on the request context.
func RouteMiddleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			label := route(r)
			if label == "" {
				label = "unknown"
			}
			ObserveHTTPRequest(r.Method, label, ww.status, time.Since(start))
		})
	}
}

// RoutePattern returns the chi route pattern matched for r, or "".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed proxy responses reach the client promptly.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
