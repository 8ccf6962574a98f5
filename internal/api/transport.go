package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chatline/internal/constants"
	"chatline/internal/logger"
)

var sensitiveHeaders = map[string]bool{
	"Cookie":        true,
	"Set-Cookie":    true,
	"Authorization": true,
}

// loggingTransport logs every outbound request and its outcome, and tags
// requests with a request id.
type loggingTransport struct {
	next http.RoundTripper
	log  *slog.Logger
}

func newLoggingTransport(next http.RoundTripper, log *slog.Logger) *loggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	requestID := req.Header.Get(constants.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(ctx)
		req.Header.Set(constants.HeaderRequestID, requestID)
	}

	t.log.DebugContext(ctx, "request",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Any("headers", redactHeaders(req.Header)),
	)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.log.ErrorContext(ctx, "request error",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
			logger.Error(err),
		)
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	t.log.Log(ctx, level, "response",
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Any("headers", redactHeaders(resp.Header)),
	)

	return resp, nil
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name := range h {
		if sensitiveHeaders[name] {
			out[name] = "[redacted]"
			continue
		}
		out[name] = h.Get(name)
	}
	return out
}
