package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// Environment variables read by Load
const (
	EnvSourceDir   = "THUMBGEN_SOURCE_DIR"
	EnvDestDir     = "THUMBGEN_DEST_DIR"
	EnvWidth       = "THUMBGEN_WIDTH"
	EnvQuality     = "THUMBGEN_QUALITY"
	EnvFormat      = "THUMBGEN_FORMAT"
	EnvConcurrency = "THUMBGEN_CONCURRENCY"
	EnvExtensions  = "THUMBGEN_EXTENSIONS"
	EnvMetricsFile = "THUMBGEN_METRICS_FILE"
	EnvLogLevel    = "THUMBGEN_LOG_LEVEL"
)

// ErrInvalidEnv is returned when an environment variable cannot be parsed
var ErrInvalidEnv = errors.New("invalid environment variable")

// Config is the full generator configuration
type Config struct {
	pipeline.Options `yaml:",inline"`

	// MetricsFile, when set, receives a Prometheus textfile dump after each run
	MetricsFile string `yaml:"metrics_file"`

	// LogLevel is a zap level name: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// Load builds a Config from an optional YAML file, then a .env file, then the
// process environment. Later sources win. Values from the process environment
// take priority over .env, matching godotenv.Load. A missing ./.env is not an error;
// a missing YAML or named env file is, since it was asked for explicitly.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	dotenv, err := godotenv.Read(envFiles...)
	if err != nil {
		// Only the implicit ./.env may be absent
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		dotenv = map[string]string{}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v)
		}
		*dst = n
		return nil
	}

	str(EnvSourceDir, &c.SourceDir)
	str(EnvDestDir, &c.DestDir)
	str(EnvFormat, &c.Format)
	str(EnvMetricsFile, &c.MetricsFile)
	str(EnvLogLevel, &c.LogLevel)
	if err := num(EnvWidth, &c.TargetWidth); err != nil {
		return err
	}
	if err := num(EnvQuality, &c.Quality); err != nil {
		return err
	}
	if err := num(EnvConcurrency, &c.Concurrency); err != nil {
		return err
	}
	if v, ok := lookup(EnvExtensions); ok && v != "" {
		c.Extensions = SplitList(v)
	}
	return nil
}

// Finalize applies defaults and validates the result
func (c *Config) Finalize() error {
	c.Options.WithDefaults()
	c.Format = strings.ToLower(c.Format)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c.Options.Validate()
}

// SplitList parses a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
