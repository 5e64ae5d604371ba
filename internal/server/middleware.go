package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/bobmcallan/snaptrail/internal/common"
)

const requestIDHeader = "X-Correlation-ID"

type requestIDKey struct{}

// requestID returns the id assigned by withRequestID, or "".
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID reuses a caller-supplied id or assigns a short one, echoes it
// in the response and stores it on the request context.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = r.Header.Get(requestIDHeader)
		}
		if id == "" {
			id = uuid.NewString()[:8]
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// recoverPanics turns a handler panic into a 500 JSON error.
func recoverPanics(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error().
					Str("request_id", requestID(r.Context())).
					Str("path", r.URL.Path).
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("Handler panicked")
				WriteErrorWithCode(w, http.StatusInternalServerError, "Internal server error", "internal")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one line per request. Successful reads log at debug;
// client errors at info and server errors at error. The X-Cache header set
// by cached endpoints is included.
func accessLog(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Debug()
			switch {
			case status >= 500:
				event = logger.Error()
			case status >= 400:
				event = logger.Info()
			}
			event.
				Str("request_id", requestID(r.Context())).
				Str("method", r.Method).
				Str("route", r.URL.Path).
				Str("date", r.URL.Query().Get("date")).
				Str("cache", ww.Header().Get("X-Cache")).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("API request")
		})
	}
}
