package rest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeHost returns host as "scheme://host[:port][/path]" without a
// trailing slash. A missing scheme defaults to http. Query, fragment and
// user info are dropped.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("rest: host is required")
	}
	if !hasScheme(host) {
		host = "http://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("rest: invalid host %q: %w", host, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("rest: invalid host %q: missing host name", host)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("rest: invalid host %q: unsupported scheme %q", host, u.Scheme)
	}

	out := scheme + "://" + strings.ToLower(u.Host) + strings.TrimRight(u.EscapedPath(), "/")
	return out, nil
}

// hasScheme reports whether host opens with "scheme://", ahead of any
// path, query or fragment.
func hasScheme(host string) bool {
	i := strings.Index(host, "://")
	if i <= 0 {
		return false
	}
	return !strings.ContainsAny(host[:i], "/?#")
}

// buildURL joins host and path, then appends the encoded query.
func buildURL(host, path, query string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := host + path
	if query == "" {
		return u
	}
	if strings.Contains(path, "?") {
		return u + "&" + query
	}
	return u + "?" + query
}
