package debug

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moul/http2curl"

	"github.com/kbukum/gorest/logger"
)

// FileName returns the debug log file name for a client name:
// "curl_<name>.log", lower-cased, with path separators replaced by "_".
func FileName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("\\", "_", "/", "_", " ", "_").Replace(name)
	return "curl_" + name + ".log"
}

// Transport is an http.RoundTripper that, while enabled, rewrites its log
// file on every exchange with the curl command, the request sent and the
// response received.
type Transport struct {
	next    http.RoundTripper
	path    string
	log     *logger.Logger
	enabled atomic.Bool
	mu      sync.Mutex
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps next. A nil next uses http.DefaultTransport and a nil
// log discards write failures.
func NewTransport(next http.RoundTripper, path string, enabled bool, log *logger.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logger.Nop()
	}
	t := &Transport{next: next, path: path, log: log.WithComponent("debug")}
	t.enabled.Store(enabled)
	return t
}

// SetEnabled turns recording on or off.
func (t *Transport) SetEnabled(on bool) {
	t.enabled.Store(on)
}

// Enabled reports whether recording is on.
func (t *Transport) Enabled() bool {
	return t.enabled.Load()
}

// Path returns the log file location.
func (t *Transport) Path() string {
	return t.path
}

// CloseIdleConnections closes idle connections of the wrapped transport
// when it supports it.
func (t *Transport) CloseIdleConnections() {
	if c, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Enabled() {
		return t.next.RoundTrip(req)
	}

	body, err := readBody(req)
	if err != nil {
		return nil, err
	}
	out := withBody(req, body)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "* %s %s %s\n", time.Now().Format(time.RFC3339), req.Method, req.URL.Redacted())
	if cmd, err := http2curl.GetCurlCommand(withBody(req, body)); err == nil {
		fmt.Fprintf(&buf, "* %s\n", cmd.String())
	}
	if dump, err := httputil.DumpRequestOut(withBody(req, body), true); err == nil {
		writePrefixed(&buf, "> ", dump)
	}

	started := time.Now()
	resp, rtErr := t.next.RoundTrip(out)
	if rtErr != nil {
		fmt.Fprintf(&buf, "* error after %s: %v\n", time.Since(started).Round(time.Millisecond), rtErr)
	} else {
		fmt.Fprintf(&buf, "* response after %s\n", time.Since(started).Round(time.Millisecond))
		if dump, err := httputil.DumpResponse(resp, true); err == nil {
			writePrefixed(&buf, "< ", dump)
		}
	}

	t.write(buf.Bytes())
	return resp, rtErr
}

func (t *Transport) write(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.log.Warn("cannot create debug log dir", logger.Fields(logger.FieldPath, dir, logger.FieldError, err.Error()))
			return
		}
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		t.log.Warn("cannot write debug log", logger.Fields(logger.FieldPath, t.path, logger.FieldError, err.Error()))
	}
}

// readBody consumes and closes the request body. req itself is left as is.
func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("debug: read request body: %w", err)
	}
	return data, nil
}

// withBody returns a copy of req with its own body reader.
func withBody(req *http.Request, body []byte) *http.Request {
	c := req.Clone(req.Context())
	if body == nil {
		c.Body = nil
		c.GetBody = nil
		c.ContentLength = 0
		return c
	}
	c.Body = io.NopCloser(bytes.NewReader(body))
	c.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	c.ContentLength = int64(len(body))
	return c
}

func writePrefixed(buf *bytes.Buffer, prefix string, dump []byte) {
	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		buf.WriteString(prefix)
		buf.WriteString(strings.TrimRight(sc.Text(), "\r"))
		buf.WriteByte('\n')
	}
}
