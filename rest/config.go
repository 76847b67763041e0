package rest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/gorest/debug"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultCookieName = "cookies"
	defaultCookieDir  = "temp"
	defaultDebugDir   = "."
	defaultName       = "rest_client"
)

// Config configures a Client.
type Config struct {
	// Host is the API address, e.g. "api.example.com" or "https://example.com/v1/".
	Host string `yaml:"host" mapstructure:"host" validate:"required"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// CookieName is the base name of the cookie jar file. Defaults to "cookies".
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`

	// CookieDir holds the cookie jar file. Defaults to "temp".
	CookieDir string `yaml:"cookie_dir" mapstructure:"cookie_dir"`

	// DisableCookies turns cookie persistence off.
	DisableCookies bool `yaml:"disable_cookies" mapstructure:"disable_cookies"`

	// Debug records every exchange to the debug log.
	Debug bool `yaml:"debug" mapstructure:"debug"`

	// DebugDir holds the debug log. Defaults to the working directory.
	DebugDir string `yaml:"debug_dir" mapstructure:"debug_dir"`

	// Name identifies the client in logs and the debug log file name.
	Name string `yaml:"name" mapstructure:"name"`

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// TLS configures the transport. Server certificates are verified
	// unless SkipVerify is set.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// RequestIDHeader, when set, carries a fresh UUID on every request that
	// does not already have one.
	RequestIDHeader string `yaml:"request_id_header" mapstructure:"request_id_header"`

	// Tracing wraps requests in OpenTelemetry client spans.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.CookieName == "" {
		c.CookieName = defaultCookieName
	}
	if c.CookieDir == "" {
		c.CookieDir = defaultCookieDir
	}
	if c.DebugDir == "" {
		c.DebugDir = defaultDebugDir
	}
	if c.Name == "" {
		c.Name = defaultName
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if _, err := NormalizeHost(c.Host); err != nil {
		return err
	}
	if cookieBase(c.CookieName) == "" && !c.DisableCookies {
		return fmt.Errorf("rest: cookie_name %q has no base name", c.CookieName)
	}
	return c.TLS.Validate()
}

// CookiePath returns the cookie jar file location.
func (c *Config) CookiePath() string {
	return filepath.Join(c.CookieDir, cookieBase(c.CookieName)+".txt")
}

// DebugPath returns the debug log file location.
func (c *Config) DebugPath() string {
	return filepath.Join(c.DebugDir, debug.FileName(c.Name))
}

// cookieBase strips any directories from name.
func cookieBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
