package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/votecommit/log"
)

// DisabledLogging is a global flag to disable logging middleware
var DisabledLogging = false

// redactedFields are the body keys whose value is never logged. A user id
// next to a timestamp is enough to link a voter to a ballot tag.
var redactedFields = []string{"userId"}

const redacted = "<redacted>"

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes to exclude from logging
}

// DefaultLoggingConfig returns the configuration used by the API router.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       maxRequestBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// shouldSkipLogging checks if the request should be skipped from logging
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if log.Level() != log.LogLevelDebug || DisabledLogging {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// redactBody returns a loggable version of a JSON object body with the
// redacted fields masked, truncated to max bytes. Anything that is not a
// JSON object is not logged.
func redactBody(body []byte, max int) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, k := range redactedFields {
		if _, ok := fields[k]; ok {
			fields[k] = json.RawMessage(`"` + redacted + `"`)
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	s := string(out)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// loggingMiddleware logs every request and its response status at debug
// level. The route pattern is logged instead of the path, so user ids in
// the URL are not written to the log.
func loggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				data, err := io.ReadAll(r.Body)
				if err != nil {
					log.Error(err)
					http.Error(w, "unable to read request body", http.StatusInternalServerError)
					return
				}
				// restore body for handler
				r.Body = io.NopCloser(bytes.NewReader(data))
				body = redactBody(data, config.MaxBodyLog)
			}

			wrapped := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			log.Debugw("api request",
				"method", r.Method,
				"route", route,
				"body", body,
				"status", wrapped.statusCode,
				"took", time.Since(start).String(),
			)
		})
	}
}
