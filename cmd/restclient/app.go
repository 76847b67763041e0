package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/kbukum/gorest/config"
	"github.com/kbukum/gorest/logger"
	"github.com/kbukum/gorest/observability"
	"github.com/kbukum/gorest/rest"
	"github.com/kbukum/gorest/rest/response"
	"github.com/kbukum/gorest/version"
)

// flags holds the global flag values.
type flags struct {
	configFile   string
	host         string
	cookieName   string
	cookieDir    string
	noCookies    bool
	debug        bool
	timeout      time.Duration
	insecure     bool
	query        string
	logLevel     string
	otlpEndpoint string
	noColor      bool
}

// runner carries state from the Before hook to the commands.
type runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	flags    flags
	cfg      appConfig
	log      *logger.Logger
	metrics  *observability.Metrics
	shutdown []func(context.Context) error
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	r := &runner{stdin: stdin, stdout: stdout, stderr: stderr}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.Get().String())
	}

	return &cli.App{
		Name:      appName,
		Usage:     "send requests to a REST API",
		Version:   version.Get().Short(),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Before:    r.setup,
		After:     r.teardown,
		// main decides the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags:          r.globalFlags(),
		Commands: []*cli.Command{
			r.argsCommand("get", "send a GET request, key=value pairs go into the query string", (*rest.Client).Get),
			r.bodyCommand("post", "send a POST request", (*rest.Client).Post),
			r.bodyCommand("put", "send a PUT request", (*rest.Client).Put),
			r.argsCommand("delete", "send a DELETE request, key=value pairs go into the query string", (*rest.Client).Delete),
			r.parseCommand(),
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(r.stdout, version.Get().String())
					return nil
				},
			},
		},
	}
}

func (r *runner) globalFlags() []cli.Flag {
	f := &r.flags
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default: search restclient.yml, config.yml)", Destination: &f.configFile},
		&cli.StringFlag{Name: "host", Usage: "API host, e.g. https://api.example.com/v1", EnvVars: []string{"RESTCLIENT_HOST"}, Destination: &f.host},
		&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "extra header \"Name: value\", repeatable"},
		&cli.StringFlag{Name: "cookie-name", Usage: "cookie jar name (stored as <cookie-dir>/<name>.txt)", Destination: &f.cookieName},
		&cli.StringFlag{Name: "cookie-dir", Usage: "cookie jar directory", Destination: &f.cookieDir},
		&cli.BoolFlag{Name: "no-cookies", Usage: "do not read or write the cookie jar", Destination: &f.noCookies},
		&cli.BoolFlag{Name: "debug", Usage: "write curl_<name>.log for every request", Destination: &f.debug},
		&cli.DurationFlag{Name: "timeout", Usage: "request timeout", Destination: &f.timeout},
		&cli.BoolFlag{Name: "insecure", Aliases: []string{"k"}, Usage: "skip TLS certificate verification", Destination: &f.insecure},
		&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "print only the part of a JSON result at this gjson path", Destination: &f.query},
		&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn, error or disabled", Destination: &f.logLevel},
		&cli.StringFlag{Name: "otlp-endpoint", Usage: "export traces and metrics to this OTLP/HTTP collector (host:port)", Destination: &f.otlpEndpoint},
		&cli.BoolFlag{Name: "no-color", Usage: "never color JSON output", Destination: &f.noColor},
	}
}

// setup loads the configuration, merges the flags and starts telemetry.
func (r *runner) setup(c *cli.Context) error {
	return exitError(r.configure(c))
}

func (r *runner) configure(c *cli.Context) error {
	opts := []config.LoaderOption{}
	if r.flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(r.flags.configFile))
	}
	if err := config.Load(appName, &r.cfg, opts...); err != nil {
		return err
	}
	if err := r.mergeFlags(c); err != nil {
		return err
	}

	r.log = logger.New(&r.cfg.Log, appName)

	if r.cfg.Telemetry.Endpoint != "" {
		if err := r.startTelemetry(c.Context); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) mergeFlags(c *cli.Context) error {
	f := r.flags
	cfg := &r.cfg
	if f.host != "" {
		cfg.Host = f.host
	}
	if hs := c.StringSlice("header"); len(hs) > 0 {
		extra, err := parseHeaders(hs)
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(extra))
		}
		for k, v := range extra {
			cfg.Headers[k] = v
		}
	}
	if f.cookieName != "" {
		cfg.CookieName = f.cookieName
	}
	if f.cookieDir != "" {
		cfg.CookieDir = f.cookieDir
	}
	if c.IsSet("no-cookies") {
		cfg.DisableCookies = f.noCookies
	}
	if c.IsSet("debug") {
		cfg.Debug = f.debug
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	if f.insecure {
		if cfg.TLS == nil {
			cfg.TLS = &rest.TLSConfig{}
		}
		cfg.TLS.SkipVerify = true
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.otlpEndpoint != "" {
		cfg.Telemetry.Endpoint = f.otlpEndpoint
	}
	return cfg.Log.Validate()
}

func (r *runner) startTelemetry(ctx context.Context) error {
	t := r.cfg.Telemetry
	ver := version.Get().Short()

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    appName,
		ServiceVersion: ver,
		Endpoint:       t.Endpoint,
		Insecure:       t.Insecure,
		SampleRate:     t.SampleRate,
	})
	if err != nil {
		return err
	}
	r.shutdown = append(r.shutdown, tp.Shutdown)

	mcfg := observability.DefaultMeterConfig(appName)
	mcfg.ServiceVersion = ver
	mcfg.Endpoint = t.Endpoint
	mcfg.Insecure = t.Insecure
	mp, err := observability.InitMeter(ctx, &mcfg)
	if err != nil {
		return err
	}
	r.shutdown = append(r.shutdown, mp.Shutdown)

	r.metrics, err = observability.NewMetrics(observability.Meter(appName))
	if err != nil {
		return err
	}
	r.cfg.Tracing = true
	return nil
}

func (r *runner) teardown(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(r.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, r.shutdown[i](ctx))
	}
	return errors.Join(errs...)
}

func (r *runner) newClient() (*rest.Client, error) {
	opts := []rest.Option{rest.WithLogger(r.log)}
	if r.metrics != nil {
		opts = append(opts, rest.WithMetrics(r.metrics))
	}
	return rest.New(r.cfg.Config, opts...)
}

func (r *runner) printer() *printer {
	return newPrinter(r.stdout, r.flags.noColor, r.flags.query)
}

// result prints v, or turns err into an exit error naming its category.
func (r *runner) result(v any, err error) error {
	if err != nil {
		var rerr *response.Error
		if errors.As(err, &rerr) {
			return cli.Exit(fmt.Sprintf("%s error: %s", rerr.Category, rerr.Error()), 1)
		}
		return err
	}
	return r.printer().Print(v)
}

// exitError wraps setup failures so they leave with status 2.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(err.Error(), 2)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
