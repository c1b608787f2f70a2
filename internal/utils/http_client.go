package utils

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/syy-ex/hair-makeover/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxLoggedBody = 2000

var signPattern = regexp.MustCompile(`(sign=)[0-9A-Za-z]+`)

// LoggingTransport implements http.RoundTripper and logs requests and responses
type LoggingTransport struct {
	Transport http.RoundTripper
}

// RoundTrip executes a single HTTP transaction and logs the request and response
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	debug := logger.Log.Core().Enabled(zapcore.DebugLevel)
	reqBody := ""
	if debug && req.Body != nil && isTextual(req.Header.Get("Content-Type")) {
		var head []byte
		head, req.Body = peekBody(req.Body)
		reqBody = truncate(MaskSecrets(string(head)))
	}
	logger.Log.Debug("Outbound HTTP request",
		zap.String("method", req.Method),
		zap.String("url", maskURL(req.URL)),
		zap.String("body", reqBody),
	)

	start := time.Now()
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	resp, err := transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logger.Log.Warn("Outbound HTTP request failed",
			zap.String("method", req.Method),
			zap.String("url", maskURL(req.URL)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	respBody := ""
	if debug && resp.Body != nil && isTextual(resp.Header.Get("Content-Type")) {
		var head []byte
		head, resp.Body = peekBody(resp.Body)
		respBody = truncate(string(head))
	}
	logger.Log.Debug("Outbound HTTP response",
		zap.String("method", req.Method),
		zap.String("url", maskURL(req.URL)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.String("body", respBody),
	)
	return resp, nil
}

// NewHTTPClient returns a new http.Client with logging enabled
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &LoggingTransport{
			Transport: http.DefaultTransport,
		},
	}
}

func MaskSecrets(s string) string {
	return signPattern.ReplaceAllString(s, "${1}***")
}

func maskURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return MaskSecrets(u.String())
}

// peekBody reads at most maxLoggedBody+1 bytes for logging and returns a body
// that still yields the full stream.
func peekBody(body io.ReadCloser) ([]byte, io.ReadCloser) {
	head, _ := io.ReadAll(io.LimitReader(body, maxLoggedBody+1))
	return head, struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), body), body}
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...(truncated)"
	}
	return s
}

// Multipart uploads carry image bytes and are not worth logging.
func isTextual(contentType string) bool {
	return !strings.HasPrefix(contentType, "multipart/") &&
		!strings.HasPrefix(contentType, "image/")
}
