package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kbukum/gorest/logger"
	"github.com/kbukum/gorest/rest"
)

const appName = "restclient"

// appConfig is the restclient.yml layout. Client settings sit at the top
// level so that RESTCLIENT_HOST and friends map onto them directly.
type appConfig struct {
	rest.Config `yaml:",inline" mapstructure:",squash"`

	Log       logger.Config   `yaml:"log" mapstructure:"log"`
	Telemetry telemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

type telemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector address. Empty disables export.
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ApplyDefaults only touches the logging section; client defaults are
// applied by rest.New once flags have been merged.
func (c *appConfig) ApplyDefaults() {
	c.Log.ApplyDefaults()
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

// Validate checks the logging section. The client settings are checked
// by rest.New.
func (c *appConfig) Validate() error {
	return c.Log.Validate()
}

// parseHeaders turns "Name: value" strings into a header map.
func parseHeaders(lines []string) (map[string]string, error) {
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", line)
		}
		out[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

// parseArgs turns key=value words into Args. Repeated keys collect into a
// list.
func parseArgs(words []string) (rest.Args, error) {
	if len(words) == 0 {
		return nil, nil
	}
	args := make(rest.Args, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", w)
		}
		switch prev := args[k].(type) {
		case nil:
			args[k] = v
		case string:
			args[k] = []string{prev, v}
		case []string:
			args[k] = append(prev, v)
		}
	}
	return args, nil
}
