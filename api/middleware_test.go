package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/votecommit/log"
)

func TestLoggingMiddleware(t *testing.T) {
	log.Init(log.LogLevelDebug, "stderr", nil)
	t.Cleanup(func() { log.Init(log.LogLevelError, "stderr", nil) })

	// echo handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
	wrapped := loggingMiddleware(LoggingConfig{MaxBodyLog: 10})(handler)

	for name, body := range map[string]string{
		"JSON object":          `{"userId": "u1", "candidateId": 2}`,
		"JSON array":           `[1, 2, 3]`,
		"JSON with whitespace": `  {"key": "value"}`,
		"Binary data":          "\x00\x01\x02\x03\x04",
		"Plain text":           "Hello, World!",
		"Empty body":           "",
	} {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			req := httptest.NewRequest(http.MethodPost, "/elections", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)
			c.Assert(rec.Code, qt.Equals, http.StatusOK)
			// the body reaches the handler untouched
			c.Assert(rec.Body.String(), qt.Equals, body)
		})
	}
}

func TestRedactBody(t *testing.T) {
	c := qt.New(t)
	c.Assert(redactBody([]byte(`{"userId":"alice","candidateId":2}`), 100), qt.Equals,
		`{"candidateId":2,"userId":"<redacted>"}`)
	c.Assert(redactBody([]byte(`{"name":"Bob"}`), 100), qt.Equals, `{"name":"Bob"}`)
	c.Assert(redactBody([]byte(`{"description":"Bob for president"}`), 10), qt.Equals, `{"descript...`)
	c.Assert(redactBody([]byte(`[1, 2, 3]`), 100), qt.Equals, "")
	c.Assert(redactBody([]byte("Hello, World!"), 100), qt.Equals, "")
}

func TestLoggingConfigExclusions(t *testing.T) {
	c := qt.New(t)
	cfg := LoggingConfig{MaxBodyLog: 100, ExcludedPrefixes: []string{"/ping", "/health"}}

	log.Init(log.LogLevelDebug, "stderr", nil)
	t.Cleanup(func() { log.Init(log.LogLevelError, "stderr", nil) })
	for path, skip := range map[string]bool{
		"/ping":           true,
		"/healthcheck":    true,
		"/elections":      false,
		"/proofs/verify":  false,
		"/elections/ping": false,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		c.Assert(cfg.shouldSkipLogging(req), qt.Equals, skip, qt.Commentf("%s", path))
	}

	DisabledLogging = true
	c.Assert(cfg.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/elections", nil)), qt.IsTrue)
	DisabledLogging = false

	log.Init(log.LogLevelInfo, "stderr", nil)
	c.Assert(cfg.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/elections", nil)), qt.IsTrue)
}

func TestResponseWriterCapture(t *testing.T) {
	c := qt.New(t)
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusTeapot)
	c.Assert(rw.statusCode, qt.Equals, http.StatusCreated)

	rw = &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, err := rw.Write([]byte("ok"))
	c.Assert(err, qt.IsNil)
	c.Assert(rw.statusCode, qt.Equals, http.StatusOK)
}

func TestErrorFrom(t *testing.T) {
	c := qt.New(t)
	c.Assert(errorFrom(ErrBallotNotFound.With("x")).Code, qt.Equals, ErrBallotNotFound.Code)
	c.Assert(errorFrom(io.EOF).Code, qt.Equals, ErrGenericInternalServerError.Code)

	rec := httptest.NewRecorder()
	ErrElectionNotFound.With("ELEC-1").Write(rec)
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(rec.Body.String(), qt.Equals, `{"error":"election not found: ELEC-1","code":40002}`+"\n")
}

func TestEndpointWithParam(t *testing.T) {
	c := qt.New(t)
	c.Assert(EndpointWithParam(ElectionEndpoint, ElectionURLParam, "ELEC-1"), qt.Equals, "/elections/ELEC-1")
	c.Assert(EndpointWithParam(ElectionsEndpoint, "page", "2"), qt.Equals, "/elections?page=2")
}
