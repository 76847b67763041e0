package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Response is a received HTTP response with its body fully read.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response body.
	Body []byte
}

// Process classifies the status code and wraps the response.
// For mapped error codes both the response and a *Error are returned.
func Process(statusCode int, header http.Header, body []byte) (*Response, error) {
	if header == nil {
		header = http.Header{}
	}
	resp := &Response{StatusCode: statusCode, Header: header, Body: body}
	if err := ClassifyStatusCode(statusCode, body); err != nil {
		return resp, err
	}
	return resp, nil
}

var (
	statusLineRe = regexp.MustCompile(`^HTTP/\d(?:\.\d)?\s+(\d{3})`)
	headerLineRe = regexp.MustCompile(`^([A-Za-z0-9-]+?):\s*(.+)$`)
)

// ParseRaw parses a raw HTTP response as printed by `curl -i`.
// Several header blocks may precede the body (1xx, redirects). The last
// status line decides the status code. Header lines are merged across
// blocks, a later line replacing an earlier one of the same name. A block
// that does not open with a status line, or is not closed by an empty
// line, is the body.
func ParseRaw(raw []byte) (*Response, error) {
	if !bytes.HasPrefix(raw, []byte("HTTP/")) {
		return nil, fmt.Errorf("rest/response: no status line found")
	}
	block, rest, _ := splitHeaderBlock(raw)
	status, header, err := parseHeaderBlock(block)
	if err != nil {
		return nil, err
	}

	for isStatusLine(rest) {
		block, after, closed := splitHeaderBlock(rest)
		if !closed {
			break
		}
		code, h, err := parseHeaderBlock(block)
		if err != nil {
			break
		}
		status, rest = code, after
		for k, v := range h {
			header[k] = v
		}
	}
	return Process(status, header, rest)
}

func isStatusLine(data []byte) bool {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	return statusLineRe.Match(bytes.TrimSpace(line))
}

// splitHeaderBlock cuts data at the first empty line and reports whether
// one was found.
func splitHeaderBlock(data []byte) (block, rest []byte, closed bool) {
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 {
		return data[:i], data[i+4:], true
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return data[:i], data[i+2:], true
	}
	return data, nil, false
}

func parseHeaderBlock(block []byte) (int, http.Header, error) {
	lines := strings.Split(string(block), "\n")
	m := statusLineRe.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return 0, nil, fmt.Errorf("rest/response: malformed status line %q", strings.TrimSpace(lines[0]))
	}
	code, _ := strconv.Atoi(m[1])

	header := http.Header{}
	for _, line := range lines[1:] {
		hm := headerLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if hm == nil {
			continue
		}
		header.Set(hm[1], hm[2])
	}
	return code, header, nil
}

// ContentType returns the Content-Type header value.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// IsJSON reports whether the Content-Type mentions json, in any case.
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType()), "json")
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Value returns the decoded body: a JSON value (map[string]any, []any,
// string, float64, bool or nil) for JSON responses and the body text
// otherwise.
func (r *Response) Value() (any, error) {
	if !r.IsJSON() {
		return string(r.Body), nil
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, NewDecodeError(err, r.Body)
	}
	return v, nil
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return NewDecodeError(err, r.Body)
	}
	return nil
}

// Get runs a gjson path query against the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}
