// Package config resolves the process configuration from a .env file, the environment and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig occurs when a configuration value is malformed or out of range.
var ErrInvalidConfig = errors.New("invalid config")

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	LogFormatJSON = "json"
	LogFormatText = "text"
)

const envPrefix = "WEATHER_MCP_"

type Config struct {
	// Transport is either TransportStdio or TransportHTTP.
	Transport string
	// Addr is the listen address of the HTTP transport.
	Addr      string
	LogLevel  slog.Level
	LogFormat string
	// CitiesFile is a YAML city dataset. Empty means the built-in dataset.
	CitiesFile string
	// ForecastSeed makes forecasts reproducible when non-zero.
	ForecastSeed uint64
	// RateLimit is the number of tool calls allowed per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// JWTSecret enables bearer-token authorization on the HTTP transport when set.
	JWTSecret string
}

type loadOptions struct {
	envFile   string
	lookupEnv func(string) (string, bool)
	output    io.Writer
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithEnvFile sets the .env file to read. Defaults to ".env"; a missing file is not an error.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithLookupEnv sets the environment lookup. Defaults to os.LookupEnv.
func WithLookupEnv(f func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) {
		o.lookupEnv = f
	}
}

// WithOutput sets where flag usage and parse errors are written. Defaults to os.Stderr.
func WithOutput(w io.Writer) LoadOption {
	return func(o *loadOptions) {
		o.output = w
	}
}

// Load resolves the configuration. Flags in args override the environment,
// which overrides the .env file, which overrides the defaults.
func Load(args []string, options ...LoadOption) (*Config, error) {
	opts := &loadOptions{
		envFile:   ".env",
		lookupEnv: os.LookupEnv,
		output:    os.Stderr,
	}
	for _, opt := range options {
		opt(opts)
	}

	dotenv, err := readEnvFile(opts.envFile)
	if err != nil {
		return nil, err
	}
	env := func(key, def string) string {
		if v, ok := opts.lookupEnv(envPrefix + key); ok && v != "" {
			return v
		}
		if v, ok := dotenv[envPrefix+key]; ok && v != "" {
			return v
		}
		return def
	}

	flags := flag.NewFlagSet("weather-mcp", flag.ContinueOnError)
	flags.SetOutput(opts.output)
	transport := flags.String("transport", env("TRANSPORT", TransportStdio), "transport to serve on (stdio or http)")
	addr := flags.String("addr", env("ADDR", ":3001"), "listen address of the http transport")
	logLevel := flags.String("log-level", env("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	logFormat := flags.String("log-format", env("LOG_FORMAT", LogFormatJSON), "log format (json or text)")
	citiesFile := flags.String("cities", env("CITIES_FILE", ""), "YAML city dataset, empty for the built-in one")
	seed := flags.String("seed", env("FORECAST_SEED", "0"), "forecast seed, 0 for random")
	rateLimit := flags.String("rate-limit", env("RATE_LIMIT", "0"), "tool calls per second, 0 to disable")
	rateBurst := flags.String("rate-burst", env("RATE_BURST", "5"), "tool call burst size")
	jwtSecret := flags.String("jwt-secret", env("JWT_SECRET", ""), "HMAC secret for bearer tokens on the http transport")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c := &Config{
		Transport:  strings.ToLower(*transport),
		Addr:       *addr,
		LogFormat:  strings.ToLower(*logFormat),
		CitiesFile: *citiesFile,
		JWTSecret:  *jwtSecret,
	}
	if err := c.LogLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level '%s': %w", ErrInvalidConfig, *logLevel, err)
	}
	if c.ForecastSeed, err = strconv.ParseUint(*seed, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: forecast seed '%s': %w", ErrInvalidConfig, *seed, err)
	}
	if c.RateLimit, err = strconv.ParseFloat(*rateLimit, 64); err != nil {
		return nil, fmt.Errorf("%w: rate limit '%s': %w", ErrInvalidConfig, *rateLimit, err)
	}
	if c.RateBurst, err = strconv.Atoi(*rateBurst); err != nil {
		return nil, fmt.Errorf("%w: rate burst '%s': %w", ErrInvalidConfig, *rateBurst, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("%w: transport '%s'", ErrInvalidConfig, c.Transport)
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("%w: log format '%s'", ErrInvalidConfig, c.LogFormat)
	}
	if c.Transport == TransportHTTP && c.Addr == "" {
		return fmt.Errorf("%w: addr is required for the http transport", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("%w: rate burst must be positive", ErrInvalidConfig)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file '%s': %w", path, err)
	}
	return env, nil
}
