package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/gorest/logger"
	"github.com/kbukum/gorest/rest/response"
)

func newTestClient(t *testing.T, host string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Host:           host,
		DisableCookies: true,
		DebugDir:       t.TempDir(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func jsonHandler(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestClient_Get_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/users/123" {
			t.Errorf("expected /users/123, got %s", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "active=1&fields=name" {
			t.Errorf("query = %q", got)
		}
		jsonHandler(200, map[string]any{"name": "Alice", "age": 30})(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/")
	v, err := c.Get(context.Background(), "users/123", Args{"fields": "name", "active": true})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", v)
	}
	if m["name"] != "Alice" || m["age"] != float64(30) {
		t.Errorf("value = %v", m)
	}
}

func TestClient_Get_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `{"looks":"like json"}`)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != `{"looks":"like json"}` {
		t.Errorf("expected raw text, got %#v", v)
	}
}

func TestClient_ContentTypeCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "Application/Problem+JSON")
		_, _ = io.WriteString(w, `[1,2]`)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if list, ok := v.([]any); !ok || len(list) != 2 {
		t.Errorf("expected decoded list, got %#v", v)
	}
}

func TestClient_Post_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("name") != "Bob" || r.FormValue("roles[0]") != "admin" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		jsonHandler(201, map[string]string{"id": "7"})(w, r)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Post(context.Background(), "/users", Args{"name": "Bob", "roles": []string{"admin"}})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if v.(map[string]any)["id"] != "7" {
		t.Errorf("value = %v", v)
	}
}

func TestClient_Post_Form(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != contentTypeForm {
			t.Errorf("content type = %q", ct)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("q") != "a b" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Post(context.Background(), "/search", Form{"q": "a b"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty text for 204, got %#v", v)
	}
}

func TestClient_Put_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		jsonHandler(200, body)(w, r)
	}))
	defer srv.Close()

	v, err := newTestClient(t, srv.URL).Put(context.Background(), "/users/1", JSON(map[string]string{"name": "Carol"}))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v.(map[string]any)["name"] != "Carol" {
		t.Errorf("value = %v", v)
	}
}

func TestClient_Put_RawString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if string(data) != "name=Dan" {
			t.Errorf("body = %q", data)
		}
		if ct := r.Header.Get("Content-Type"); ct != contentTypeForm {
			t.Errorf("content type = %q", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Put(context.Background(), "/users/1", "name=Dan"); err != nil {
		t.Fatal(err)
	}
}

func TestClient_Delete_Args(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Query().Get("force") != "1" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Delete(context.Background(), "/users/1", Args{"force": true}); err != nil {
		t.Fatal(err)
	}
}

func TestClient_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		if r.Header.Get("Content-Type") != "text/csv" {
			t.Errorf("configured Content-Type should win, got %q", r.Header.Get("Content-Type"))
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "gorest/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.Headers = map[string]string{"X-Api-Key": "secret", "Content-Type": "text/csv"}
		cfg.RequestIDHeader = "X-Request-ID"
	})
	if _, err := c.Post(context.Background(), "/import", "a,b"); err != nil {
		t.Fatal(err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		category response.Category
		code     response.ErrorCode
		message  string
		check    func(error) bool
	}{
		{400, response.CategoryInvalidArgument, response.ErrCodeBadRequest, "missing field", response.IsInvalidArgument},
		{401, response.CategoryLogic, response.ErrCodeUnauthorized, "Unauthorized", response.IsUnauthorized},
		{403, response.CategoryRuntime, response.ErrCodeForbidden, "API key was invalid.", response.IsForbidden},
		{404, response.CategoryLogic, response.ErrCodeNotFound, "Resource not found", response.IsNotFound},
		{500, response.CategoryRuntime, response.ErrCodeServer, "Internal server error", response.IsServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "missing field")
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			v, err := c.Get(context.Background(), "/", nil)
			if v != nil {
				t.Errorf("expected nil value, got %#v", v)
			}
			var rerr *response.Error
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *response.Error, got %T: %v", err, err)
			}
			if rerr.Category != tt.category || rerr.Code != tt.code || rerr.Message != tt.message {
				t.Errorf("error = %+v", rerr)
			}
			if !tt.check(err) {
				t.Errorf("predicate false for %v", err)
			}

			resp, err := c.Do(context.Background(), Request{Path: "/"})
			if err == nil || resp == nil || resp.StatusCode != tt.status {
				t.Errorf("Do() = %v, %v", resp, err)
			}
		})
	}
}

func TestClient_SuccessCodes(t *testing.T) {
	for _, status := range []int{200, 201, 204} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		if _, err := newTestClient(t, srv.URL).Get(context.Background(), "/", nil); err != nil {
			t.Errorf("status %d: unexpected error %v", status, err)
		}
		srv.Close()
	}
}

func TestClient_UnmappedStatusWarns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "", &buf)
	c, err := New(Config{Host: srv.URL, DisableCookies: true, DebugDir: t.TempDir()}, WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	v, err := c.Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("unmapped status should pass through, got %v", err)
	}
	if v != "short and stout" {
		t.Errorf("value = %#v", v)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"status":418`) {
		t.Errorf("expected warn log with status, got %q", out)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{broken")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Get(context.Background(), "/", nil)
	var rerr *response.Error
	if !errors.As(err, &rerr) || rerr.Code != response.ErrCodeDecode || !response.IsRuntime(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	_, err := newTestClient(t, host).Get(context.Background(), "/", nil)
	if !response.IsTransport(err) || !response.IsRuntime(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if response.StatusCode(err) != 0 {
		t.Errorf("status = %d", response.StatusCode(err))
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	_, err := c.Get(context.Background(), "/", nil)
	var rerr *response.Error
	if !errors.As(err, &rerr) || rerr.Code != response.ErrCodeTransport || !rerr.Timeout {
		t.Fatalf("expected timeout transport error, got %v", err)
	}
}

func TestClient_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(jsonHandler(200, map[string]bool{"ok": true}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Get(context.Background(), "/", nil)
	if !response.IsTransport(err) {
		t.Fatalf("expected certificate verification failure, got %v", err)
	}

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.TLS = &TLSConfig{SkipVerify: true} })
	v, err := c.Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("Get with skip_verify: %v", err)
	}
	if v.(map[string]any)["ok"] != true {
		t.Errorf("value = %v", v)
	}
}

func TestClient_CookiesPersisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t", Path: "/"})
		case "/me":
			ck, err := r.Cookie("session")
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, ck.Value)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	withJar := func(cfg *Config) {
		cfg.DisableCookies = false
		cfg.CookieDir = dir
		cfg.CookieName = "api"
	}

	first := newTestClient(t, srv.URL, withJar)
	if _, err := first.Get(context.Background(), "/login", nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "api.txt")
	if first.CookiePath() != path {
		t.Errorf("cookie path = %q", first.CookiePath())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cookie file not written: %v", err)
	}
	if !strings.Contains(string(data), "session\ts3cr3t") {
		t.Errorf("cookie file = %q", data)
	}

	second := newTestClient(t, srv.URL, withJar)
	v, err := second.Get(context.Background(), "/me", nil)
	if err != nil {
		t.Fatalf("cookie not replayed: %v", err)
	}
	if v != "s3cr3t" {
		t.Errorf("value = %#v", v)
	}

	if err := second.SetCookieName("other"); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Get(context.Background(), "/me", nil); !response.IsUnauthorized(err) {
		t.Errorf("fresh jar should carry no session, got %v", err)
	}
}

func TestClient_Setters(t *testing.T) {
	var mu sync.Mutex
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotKey = r.Header.Get("X-Key")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, "placeholder.invalid")
	if err := c.SetHost(srv.URL + "/"); err != nil {
		t.Fatal(err)
	}
	if c.Host() != srv.URL {
		t.Errorf("Host() = %q", c.Host())
	}
	if err := c.SetHost(""); err == nil {
		t.Error("expected error for empty host")
	}

	c.SetHeaders(map[string]string{"X-Key": "one"})
	if _, err := c.Get(context.Background(), "/", nil); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	if gotKey != "one" {
		t.Errorf("X-Key = %q", gotKey)
	}
	mu.Unlock()
	if c.Headers()["X-Key"] != "one" {
		t.Errorf("Headers() = %v", c.Headers())
	}

	if err := c.SetCookieName("/"); err == nil {
		t.Error("expected error for empty cookie base name")
	}
	if err := c.SetCookieName("renamed"); err != nil {
		t.Errorf("SetCookieName with cookies disabled: %v", err)
	}
	if c.CookiePath() != "" {
		t.Errorf("CookiePath() = %q, want empty when disabled", c.CookiePath())
	}
}

func TestClient_Debug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, srv.URL, func(cfg *Config) {
		cfg.DebugDir = dir
		cfg.Name = "Ping Client"
	})
	path := filepath.Join(dir, "curl_ping_client.log")
	if c.DebugPath() != path {
		t.Errorf("DebugPath() = %q", c.DebugPath())
	}

	if _, err := c.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("debug log written while disabled: %v", err)
	}

	c.SetDebug(true)
	if _, err := c.Get(context.Background(), "/ping", Args{"n": 1}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("debug log missing: %v", err)
	}
	if !strings.Contains(string(data), "curl -X 'GET'") || !strings.Contains(string(data), "< pong") {
		t.Errorf("debug log = %q", data)
	}
}

func TestClient_Concurrent(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(200, map[string]int{"n": 1}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "/", nil); err != nil {
				t.Error(err)
			}
			c.SetHeaders(map[string]string{"X-N": "1"})
		}()
	}
	wg.Wait()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestClient_ConcurrentWithCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var logs syncBuffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatJSON}, "test", &logs)
	c, err := New(Config{Host: srv.URL, CookieDir: dir, CookieName: "api", DebugDir: t.TempDir()}, WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				if _, err := c.Get(context.Background(), "/", nil); err != nil {
					t.Error(err)
				}
			}
			if i%4 == 0 {
				if err := c.SetCookieName("api"); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if strings.Contains(logs.String(), "cannot save cookie jar") {
		t.Errorf("cookie jar save failed under concurrency:\n%s", logs.String())
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "api.txt" {
		var names []string
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Fatalf("cookie dir holds %v, want only api.txt", names)
	}
	data, err := os.ReadFile(filepath.Join(dir, "api.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\tsession\tabc") {
		t.Errorf("cookie file missing session:\n%s", data)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestWithTransport(t *testing.T) {
	var called bool
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"stub":true}`)),
			Request:    r,
		}, nil
	})
	c, err := New(Config{Host: "stub.local", DisableCookies: true}, WithTransport(rt))
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Get(context.Background(), "x", nil)
	if err != nil || !called {
		t.Fatalf("Get via custom transport: %v, called=%v", err, called)
	}
	if v.(map[string]any)["stub"] != true {
		t.Errorf("value = %v", v)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
