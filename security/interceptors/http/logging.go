package http

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pitabwire/util"
)

const (
	maxBodyLogSize = 1024
	clientError    = 400
	serverError    = 500
)

// statusRecorder keeps the status and the first bytes of the response for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.body != nil {
		if room := maxBodyLogSize - w.body.Len(); room > 0 {
			w.body.Write(b[:min(len(b), room)])
		}
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// LoggingMiddleware logs every request once it completes. Bodies are only captured when logBody is set.
func LoggingMiddleware(logBody bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestBody := peekRequestBody(r, logBody)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			if logBody {
				recorder.body = &bytes.Buffer{}
			}

			start := time.Now()
			next.ServeHTTP(recorder, r)

			logRequest(util.Log(r.Context()), r, recorder, requestBody, time.Since(start))
		})
	}
}

// peekRequestBody reads up to maxBodyLogSize bytes and puts them back in front of the body.
func peekRequestBody(r *http.Request, logBody bool) []byte {
	if !logBody || r.Body == nil {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyLogSize))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	return head
}

func logRequest(logger *util.LogEntry, r *http.Request, rec *statusRecorder, requestBody []byte, took time.Duration) {
	entry := logger.WithFields(map[string]any{
		"request_id":  middleware.GetReqID(r.Context()),
		"method":      r.Method,
		"path":        r.URL.Path,
		"query":       r.URL.RawQuery,
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
		"status_code": rec.status,
		"duration_ms": took.Milliseconds(),
	})

	entry = withHeaders(entry, "req_header_", r.Header)
	entry = withHeaders(entry, "resp_header_", rec.Header())

	if len(requestBody) > 0 {
		entry = entry.WithField("request_body", string(requestBody))
	}
	if rec.body != nil && rec.body.Len() > 0 {
		entry = entry.WithField("response_body", rec.body.String())
	}

	switch {
	case rec.status >= serverError:
		entry.Error("HTTP request completed with server error")
	case rec.status >= clientError:
		entry.Warn("HTTP request completed with client error")
	default:
		entry.Info("HTTP request completed")
	}
}

func withHeaders(entry *util.LogEntry, prefix string, headers http.Header) *util.LogEntry {
	for name, values := range headers {
		if isSensitiveHeader(name) {
			continue
		}
		entry = entry.WithField(prefix+name, values)
	}
	return entry
}

var sensitiveHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"Set-Cookie":    {},
	"X-Api-Key":     {},
	"X-Auth-Token":  {},
	"X-Csrf-Token":  {},
	"X-Session-Id":  {},
}

func isSensitiveHeader(name string) bool {
	_, ok := sensitiveHeaders[http.CanonicalHeaderKey(name)]
	return ok
}
