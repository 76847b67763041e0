package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file lookups done by the loader.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem on the local disk.
type RealFileSystem struct{}

// Exists reports whether path exists.
func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads path into the process environment. Variables already set
// are left untouched.
func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Defaulter is implemented by configs that fill in their own defaults.
type Defaulter interface {
	ApplyDefaults()
}

// Validator is implemented by configs that check themselves after loading.
type Validator interface {
	Validate() error
}

// LoaderConfig holds loader dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // explicit config file; must exist when set
	EnvFile    string // explicit .env file; must exist when set
	EnvPrefix  string // defaults to the upper-cased application name
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// Load fills cfg for the application name. Values come from, in increasing
// precedence: the config file, the .env file and the process environment.
// ApplyDefaults and Validate run afterwards when cfg implements them.
func Load(name string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.EnvPrefix == "" {
		lc.EnvPrefix = strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	}

	configFile, err := resolve(lc.FileSystem, lc.ConfigFile, ConfigSearchPaths(name))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	envFile, err := resolve(lc.FileSystem, lc.EnvFile, EnvSearchPaths(name))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if envFile != "" {
		if err := lc.FileSystem.LoadEnv(envFile); err != nil {
			return fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(lc.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys(cfg) {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal for %s: %w", name, err)
	}

	if d, ok := cfg.(Defaulter); ok {
		d.ApplyDefaults()
	}
	if val, ok := cfg.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ConfigSearchPaths lists where Load looks for a config file when none is
// given explicitly.
func ConfigSearchPaths(name string) []string {
	paths := []string{
		name + ".yml",
		name + ".yaml",
		"config.yml",
		filepath.Join("config", name+".yml"),
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, name, "config.yml"))
	}
	return paths
}

// EnvSearchPaths lists where Load looks for a .env file when none is given
// explicitly.
func EnvSearchPaths(name string) []string {
	return []string{".env." + name, ".env"}
}

func resolve(fs FileSystem, explicit string, candidates []string) (string, error) {
	if explicit != "" {
		if !fs.Exists(explicit) {
			return "", fmt.Errorf("%s: %w", explicit, os.ErrNotExist)
		}
		return explicit, nil
	}
	for _, p := range candidates {
		if fs.Exists(p) {
			return p, nil
		}
	}
	return "", nil
}

// Keys returns the dotted leaf keys of cfg derived from its mapstructure
// tags. Embedded structs tagged ",squash" contribute their keys at the
// parent level. Maps and slices are leaves only in files, never in the
// environment, and are skipped.
func Keys(cfg any) []string {
	t := reflect.TypeOf(cfg)
	if t == nil {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "squash") || (f.Anonymous && name == "") {
			collectKeys(f.Type, prefix, keys)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft.Kind() == reflect.Struct && !isScalarStruct(ft):
			collectKeys(ft, key, keys)
		case ft.Kind() == reflect.Map, ft.Kind() == reflect.Slice && ft.Elem().Kind() != reflect.String:
		default:
			*keys = append(*keys, key)
		}
	}
}

// isScalarStruct reports struct types decoded from a single value.
func isScalarStruct(t reflect.Type) bool {
	return t.PkgPath() == "time"
}
