package cookiejar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	stdjar "net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const httpOnlyPrefix = "#HttpOnly_"

// Jar is an http.CookieJar persisted to a cookie file.
type Jar struct {
	mu      sync.Mutex
	saveMu  sync.Mutex // held for the whole of Save
	path    string
	jar     *stdjar.Jar
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  time.Time
	Name     string
	Value    string
}

func (e entry) key() string {
	return e.Domain + ";" + e.Path + ";" + e.Name
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

var _ http.CookieJar = (*Jar)(nil)

// Open creates a jar bound to path and loads the cookies stored there.
// A missing file yields an empty jar.
func Open(path string) (*Jar, error) {
	std, err := stdjar.New(&stdjar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookiejar: %w", err)
	}
	j := &Jar{
		path:    path,
		jar:     std,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// Path returns the cookie file location.
func (j *Jar) Path() string {
	return j.path
}

// Len returns the number of live cookies tracked for persistence.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	n := 0
	for _, e := range j.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	host := strings.ToLower(u.Hostname())
	for _, c := range cookies {
		e, ok := newEntry(host, u.Path, c, now)
		if !ok {
			continue
		}
		if e.expired(now) {
			delete(j.entries, e.key())
			continue
		}
		j.entries[e.key()] = e
	}
}

func newEntry(host, requestPath string, c *http.Cookie, now time.Time) (entry, bool) {
	if c.Name == "" {
		return entry{}, false
	}
	e := entry{
		Domain:   host,
		HostOnly: true,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		Name:     c.Name,
		Value:    c.Value,
	}

	if c.Domain != "" {
		domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		hostOnly, ok := domainType(host, domain)
		if !ok {
			return entry{}, false
		}
		e.Domain = domain
		e.HostOnly = hostOnly
	}

	if e.Path == "" || e.Path[0] != '/' {
		e.Path = defaultPath(requestPath)
	}

	switch {
	case c.MaxAge < 0:
		e.Expires = now.Add(-time.Second)
	case c.MaxAge > 0:
		e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		e.Expires = c.Expires
	}
	return e, true
}

// domainType applies the checks net/http/cookiejar runs on a Domain
// attribute and reports whether the cookie ends up host-only.
func domainType(host, domain string) (hostOnly, ok bool) {
	if net.ParseIP(host) != nil {
		return true, host == domain
	}
	if ps, _ := publicsuffix.PublicSuffix(domain); ps == domain {
		return true, host == domain
	}
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return false, false
	}
	return false, true
}

// defaultPath is the RFC 6265 section 5.1.4 default cookie path.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

// Save writes the live cookies to the cookie file in the Netscape format
// curl reads and writes. Parent directories are created as needed.
// It is safe to call concurrently; each call replaces the file atomically.
func (j *Jar) Save() error {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.Lock()
	now := j.now()
	list := make([]entry, 0, len(j.entries))
	for k, e := range j.entries {
		if e.expired(now) {
			delete(j.entries, k)
			continue
		}
		list = append(list, e)
	}
	j.mu.Unlock()

	sort.Slice(list, func(a, b int) bool { return list[a].key() < list[b].key() })

	var buf bytes.Buffer
	buf.WriteString("# Netscape HTTP Cookie File\n")
	buf.WriteString("# This file was generated by gorest. Edit at your own risk.\n\n")
	for _, e := range list {
		buf.WriteString(formatLine(e))
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cookiejar: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cookiejar: create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cookiejar: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cookiejar: write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cookiejar: replace %s: %w", j.path, err)
	}
	return nil
}

func formatLine(e entry) string {
	domain := e.Domain
	if !e.HostOnly {
		domain = "." + domain
	}
	if e.HTTPOnly {
		domain = httpOnlyPrefix + domain
	}
	var expires int64
	if !e.Expires.IsZero() {
		expires = e.Expires.Unix()
	}
	return strings.Join([]string{
		domain,
		boolField(!e.HostOnly),
		e.Path,
		boolField(e.Secure),
		strconv.FormatInt(expires, 10),
		e.Name,
		e.Value,
	}, "\t")
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (j *Jar) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cookiejar: read %s: %w", j.path, err)
	}

	now := j.now()
	sc := bufio.NewScanner(bytes.NewReader(data))
	for lineNo := 1; sc.Scan(); lineNo++ {
		e, ok, err := parseLine(sc.Text())
		if err != nil {
			return fmt.Errorf("cookiejar: %s:%d: %w", j.path, lineNo, err)
		}
		if !ok || e.expired(now) {
			continue
		}
		j.entries[e.key()] = e
		j.replay(e)
	}
	return sc.Err()
}

func parseLine(line string) (entry, bool, error) {
	line = strings.TrimRight(line, "\r")
	var e entry
	if strings.HasPrefix(line, httpOnlyPrefix) {
		e.HTTPOnly = true
		line = strings.TrimPrefix(line, httpOnlyPrefix)
	}
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return entry{}, false, nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) < 6 {
		return entry{}, false, fmt.Errorf("expected 7 tab separated fields, got %d", len(fields))
	}
	if len(fields) == 6 {
		fields = append(fields, "")
	}

	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return entry{}, false, fmt.Errorf("invalid expiry %q", fields[4])
	}

	e.Domain = strings.ToLower(strings.TrimPrefix(fields[0], "."))
	e.HostOnly = !strings.EqualFold(fields[1], "TRUE")
	e.Path = fields[2]
	e.Secure = strings.EqualFold(fields[3], "TRUE")
	if expires > 0 {
		e.Expires = time.Unix(expires, 0)
	}
	e.Name = fields[5]
	e.Value = fields[6]
	return e, true, nil
}

// replay feeds a stored cookie to the in-memory jar as if the owning host
// had just sent it.
func (j *Jar) replay(e entry) {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	u := &url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}
	c := &http.Cookie{
		Name:     e.Name,
		Value:    e.Value,
		Path:     e.Path,
		Secure:   e.Secure,
		HttpOnly: e.HTTPOnly,
		Expires:  e.Expires,
	}
	if !e.HostOnly {
		c.Domain = e.Domain
	}
	j.jar.SetCookies(u, []*http.Cookie{c})
}
