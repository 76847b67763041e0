package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/gorest/cookiejar"
	"github.com/kbukum/gorest/debug"
	"github.com/kbukum/gorest/logger"
	"github.com/kbukum/gorest/observability"
	"github.com/kbukum/gorest/rest/response"
	"github.com/kbukum/gorest/version"
)

// Request describes one call made with Do.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// Path is appended to the host. A leading slash is added when missing.
	Path string
	// Args are encoded into the query string.
	Args Args
	// Body is the request body. See Post for the accepted values.
	Body any
	// Headers override the client headers for this request.
	Headers map[string]string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	log       *logger.Logger
	transport http.RoundTripper
	metrics   *observability.Metrics
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTransport replaces the base transport. Config.TLS is not applied to
// a custom transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMetrics records request metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Client is a REST client bound to one host. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	debug      *debug.Transport
	log        *logger.Logger
	metrics    *observability.Metrics

	mu      sync.RWMutex
	host    string
	headers map[string]string
	jar     *cookiejar.Jar
}

// New creates a client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	host, err := NormalizeHost(cfg.Host)
	if err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	log := o.log.WithComponent("rest").WithFields(map[string]interface{}{"client": cfg.Name})

	base := o.transport
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		tlsCfg, err := cfg.TLS.Build()
		if err != nil {
			return nil, err
		}
		if tlsCfg != nil {
			transport.TLSClientConfig = tlsCfg
		}
		base = transport
	}

	c := &Client{
		cfg:     cfg,
		log:     log,
		metrics: o.metrics,
		host:    host,
		headers: copyHeaders(cfg.Headers),
	}
	c.debug = debug.NewTransport(base, cfg.DebugPath(), cfg.Debug, log)
	c.httpClient = &http.Client{
		Transport: c.debug,
		Timeout:   cfg.Timeout,
	}

	if !cfg.DisableCookies {
		jar, err := cookiejar.Open(cfg.CookiePath())
		if err != nil {
			return nil, fmt.Errorf("rest: open cookie jar: %w", err)
		}
		c.jar = jar
		c.httpClient.Jar = jarRef{c}
	}

	return c, nil
}

// Host returns the normalized host.
func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// SetHost changes the host requests are sent to.
func (c *Client) SetHost(host string) error {
	normalized, err := NormalizeHost(host)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.host = normalized
	c.mu.Unlock()
	return nil
}

// Headers returns a copy of the headers sent with every request.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyHeaders(c.headers)
}

// SetHeaders replaces the headers sent with every request.
func (c *Client) SetHeaders(headers map[string]string) {
	h := copyHeaders(headers)
	c.mu.Lock()
	c.headers = h
	c.mu.Unlock()
}

// SetCookieName switches to the cookie jar named name. The current jar is
// saved first. Only the base name of name is used.
func (c *Client) SetCookieName(name string) error {
	if cookieBase(name) == "" {
		return fmt.Errorf("rest: cookie name %q has no base name", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.CookieName = name
	if c.cfg.DisableCookies {
		return nil
	}
	if err := c.jar.Save(); err != nil {
		return fmt.Errorf("rest: save cookie jar: %w", err)
	}
	jar, err := cookiejar.Open(c.cfg.CookiePath())
	if err != nil {
		return fmt.Errorf("rest: open cookie jar: %w", err)
	}
	c.jar = jar
	return nil
}

// CookiePath returns the current cookie jar file, or "" when cookies are
// disabled.
func (c *Client) CookiePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.jar == nil {
		return ""
	}
	return c.jar.Path()
}

// SetDebug turns debug logging on or off.
func (c *Client) SetDebug(on bool) {
	c.debug.SetEnabled(on)
}

// DebugPath returns the debug log file.
func (c *Client) DebugPath() string {
	return c.debug.Path()
}

// Get sends a GET request with args in the query string and returns the
// decoded response body.
func (c *Client) Get(ctx context.Context, path string, args Args) (any, error) {
	return c.value(ctx, Request{Method: http.MethodGet, Path: path, Args: args})
}

// Post sends a POST request and returns the decoded response body.
//
// The body is encoded by type: string and []byte are sent as is, Args and
// map[string]string as multipart/form-data, Form and url.Values URL-encoded,
// *MultipartBody with its files, io.Reader streamed, and anything else
// (or a value wrapped with JSON) as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.value(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put sends a PUT request. The body is encoded as for Post.
func (c *Client) Put(ctx context.Context, path string, body any) (any, error) {
	return c.value(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete sends a DELETE request with args in the query string.
func (c *Client) Delete(ctx context.Context, path string, args Args) (any, error) {
	return c.value(ctx, Request{Method: http.MethodDelete, Path: path, Args: args})
}

func (c *Client) value(ctx context.Context, req Request) (any, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Value()
}

// Do sends req and returns the parsed response. For status codes mapped
// to errors the response is returned together with a *response.Error.
// Transport failures return only the error.
func (c *Client) Do(ctx context.Context, req Request) (*response.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx = httpReq.Context()
	var span trace.Span
	if c.cfg.Tracing {
		ctx, span = observability.StartSpan(ctx, observability.SpanHTTPRequest, trace.WithAttributes(
			attribute.String(observability.AttrHTTPMethod, httpReq.Method),
			attribute.String(observability.AttrURL, httpReq.URL.Redacted()),
		))
		defer span.End()
		observability.InjectHeaders(ctx, httpReq.Header)
		httpReq = httpReq.WithContext(ctx)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(ctx)
	}
	started := time.Now()

	resp, status, err := c.send(httpReq)
	elapsed := time.Since(started)

	fields := logger.MergeWithDuration(logger.Fields(
		logger.FieldMethod, httpReq.Method,
		logger.FieldURL, httpReq.URL.Redacted(),
		logger.FieldStatus, status,
	), elapsed)
	if id := c.requestID(httpReq); id != "" {
		fields[logger.FieldRequestID] = id
	}

	if c.metrics != nil {
		c.metrics.RecordRequestEnd(ctx, httpReq.URL.Host, httpReq.Method, status, elapsed)
	}
	if span != nil {
		span.SetAttributes(attribute.Int(observability.AttrStatusCode, status))
	}

	if err != nil {
		c.observeError(ctx, span, err)
		c.log.Debug("request failed", logger.MergeWithError(fields, err))
		return resp, err
	}

	if !response.IsMapped(status) {
		c.log.Warn("unexpected status code", fields)
	} else {
		c.log.Debug("request sent", fields)
	}
	return resp, nil
}

// send performs the round trip, reads the body and persists cookies.
func (c *Client) send(req *http.Request) (*response.Response, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, response.NewTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, response.NewTransportError(fmt.Errorf("read response body: %w", err))
	}

	c.saveCookies()

	result, err := response.Process(resp.StatusCode, resp.Header, body)
	return result, resp.StatusCode, err
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	c.mu.RLock()
	host := c.host
	headers := c.headers
	c.mu.RUnlock()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	target := buildURL(host, req.Path, req.Args.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("rest: create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", version.UserAgent())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if h := c.cfg.RequestIDHeader; h != "" && httpReq.Header.Get(h) == "" {
		httpReq.Header.Set(h, uuid.NewString())
	}

	return httpReq, nil
}

func (c *Client) requestID(req *http.Request) string {
	if c.cfg.RequestIDHeader == "" {
		return ""
	}
	return req.Header.Get(c.cfg.RequestIDHeader)
}

func (c *Client) observeError(ctx context.Context, span trace.Span, err error) {
	code, category := "unknown", "unknown"
	var rerr *response.Error
	if errors.As(err, &rerr) {
		code, category = rerr.Code.String(), rerr.Category.String()
	}
	if c.metrics != nil {
		c.metrics.RecordError(ctx, code, category)
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(observability.AttrErrorCategory, category))
	}
}

func (c *Client) saveCookies() {
	c.mu.RLock()
	jar := c.jar
	c.mu.RUnlock()
	if jar == nil {
		return
	}
	if err := jar.Save(); err != nil {
		c.log.Warn("cannot save cookie jar", logger.Fields(logger.FieldPath, jar.Path(), logger.FieldError, err.Error()))
	}
}

// Close saves the cookie jar and closes idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.mu.RLock()
	jar := c.jar
	c.mu.RUnlock()
	if jar == nil {
		return nil
	}
	if err := jar.Save(); err != nil {
		return fmt.Errorf("rest: save cookie jar: %w", err)
	}
	return nil
}

// jarRef resolves the client's current cookie jar on every call so that
// SetCookieName can swap it while requests are in flight.
type jarRef struct {
	c *Client
}

func (r jarRef) current() *cookiejar.Jar {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.jar
}

func (r jarRef) Cookies(u *url.URL) []*http.Cookie {
	return r.current().Cookies(u)
}

func (r jarRef) SetCookies(u *url.URL, cookies []*http.Cookie) {
	r.current().SetCookies(u, cookies)
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
