// Package config builds the immutable server configuration from environment variables, an optional
// .env file and an optional TOML file. Environment variables always win over the TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const (
	EnvDirectory               = "DIRECTORY"
	EnvConvertDirectory        = "CONVERT_DIRECTORY"
	EnvLogDirectory            = "LOG_DIRECTORY"
	EnvLogLevel                = "LOG_LEVEL"
	EnvPort                    = "PORT"
	EnvIDLength                = "ID_LENGTH"
	EnvIDChars                 = "ID_CHARS"
	EnvMaxFileSize             = "MAX_FILE_SIZE"
	EnvMaxConvertibleImageSize = "MAX_CONVERTIBLE_IMAGE_SIZE"
	EnvFileExpires             = "FILE_EXPIRES"
	EnvTrustProxy              = "TRUST_PROXY"
	EnvSweepInterval           = "SWEEP_INTERVAL"
	EnvRequireContentLength    = "REQUIRE_CONTENT_LENGTH"
	EnvAuditDatabase           = "AUDIT_DATABASE"
)

const (
	DefaultPort                    = 80
	DefaultIDLength                = 6
	DefaultIDChars                 = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	DefaultMaxFileSize             = 1 << 30  // 1 GiB
	DefaultMaxConvertibleImageSize = 30 << 20 // 30 MiB
	DefaultFileExpires             = time.Hour
	DefaultSweepInterval           = time.Minute
	DefaultConvertSubdir           = "converts"
)

// Config is built once at startup and shared read-only by every component.
type Config struct {
	Directory               string
	ConvertDirectory        string
	LogDirectory            string
	LogLevel                logrus.Level
	Port                    int
	IDLength                int
	IDChars                 string
	MaxFileSize             int64
	MaxConvertibleImageSize int64
	FileExpires             time.Duration
	TrustProxy              int
	SweepInterval           time.Duration
	RequireContentLength    bool
	AuditDatabase           string
}

// LoadOptions points Load at optional files. An empty EnvFile means ".env" is loaded if present.
type LoadOptions struct {
	EnvFile    string
	ConfigFile string
}

// Load reads, validates and returns the configuration. It fails fast with an error naming the
// offending variable. The convert directory is created when missing.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file %q: %w", opts.EnvFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	file, err := readConfigFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	src := &source{file: file}

	c := &Config{}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	c.Port, err = src.integer(EnvPort, DefaultPort, 0)
	collect(err)
	c.IDLength, err = src.integer(EnvIDLength, DefaultIDLength, 1)
	collect(err)
	c.TrustProxy, err = src.integer(EnvTrustProxy, 0, 0)
	collect(err)
	c.MaxFileSize, err = src.size(EnvMaxFileSize, DefaultMaxFileSize)
	collect(err)
	c.MaxConvertibleImageSize, err = src.size(EnvMaxConvertibleImageSize, DefaultMaxConvertibleImageSize)
	collect(err)

	expires, err := src.integer(EnvFileExpires, int(DefaultFileExpires/time.Second), 1)
	collect(err)
	c.FileExpires = time.Duration(expires) * time.Second

	c.SweepInterval, err = src.duration(EnvSweepInterval, DefaultSweepInterval)
	collect(err)
	c.RequireContentLength, err = src.boolean(EnvRequireContentLength, true)
	collect(err)
	c.IDChars, err = src.alphabet(EnvIDChars, DefaultIDChars)
	collect(err)
	c.LogLevel, err = src.level(EnvLogLevel, logrus.DebugLevel)
	collect(err)

	c.Directory, err = src.directory(EnvDirectory)
	collect(err)

	c.LogDirectory = src.str(EnvLogDirectory, "")
	if c.LogDirectory != "" {
		c.LogDirectory, err = existingDir(EnvLogDirectory, c.LogDirectory)
		collect(err)
	}

	c.AuditDatabase = src.str(EnvAuditDatabase, "")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c.ConvertDirectory = src.str(EnvConvertDirectory, filepath.Join(c.Directory, DefaultConvertSubdir))
	c.ConvertDirectory, err = ensureDir(EnvConvertDirectory, c.ConvertDirectory)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// IDPattern matches valid object ids.
func (c *Config) IDPattern() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^[%s]{%d}$", regexp.QuoteMeta(c.IDChars), c.IDLength))
}

// Fields renders the configuration for startup logging.
func (c *Config) Fields() logrus.Fields {
	return logrus.Fields{
		EnvDirectory:               c.Directory,
		EnvConvertDirectory:        c.ConvertDirectory,
		EnvLogDirectory:            c.LogDirectory,
		EnvLogLevel:                c.LogLevel.String(),
		EnvPort:                    c.Port,
		EnvIDLength:                c.IDLength,
		EnvIDChars:                 c.IDChars,
		EnvMaxFileSize:             units.BytesSize(float64(c.MaxFileSize)),
		EnvMaxConvertibleImageSize: units.BytesSize(float64(c.MaxConvertibleImageSize)),
		EnvFileExpires:             c.FileExpires.String(),
		EnvTrustProxy:              c.TrustProxy,
		EnvSweepInterval:           c.SweepInterval.String(),
		EnvRequireContentLength:    c.RequireContentLength,
		EnvAuditDatabase:           c.AuditDatabase,
	}
}

func readConfigFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	return m, nil
}

// source resolves a raw value for a variable, looking at the environment first and then at the
// TOML file, where keys are the lower-cased variable names.
type source struct {
	file map[string]any
}

func (s *source) lookup(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	v, ok := s.file[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func (s *source) str(name, def string) string {
	if v, ok := s.lookup(name); ok {
		return v
	}
	return def
}

func (s *source) integer(name string, def, minValue int) (int, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v < minValue {
		return 0, fmt.Errorf("%s must be at least %d, got %d", name, minValue, v)
	}
	return v, nil
}

// size accepts plain byte counts as well as human sizes such as "30MiB" or "1g".
func (s *source) size(name string, def int64) (int64, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return def, nil
	}
	v, err := units.RAMInBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a size, got %q: %w", name, raw, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be at least 1 byte, got %d", name, v)
	}
	return v, nil
}

func (s *source) duration(name string, def time.Duration) (time.Duration, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", name, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return v, nil
}

func (s *source) boolean(name string, def bool) (bool, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

func (s *source) level(name string, def logrus.Level) (logrus.Level, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return def, nil
	}
	lvl, err := logrus.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return lvl, nil
}

func (s *source) alphabet(name, def string) (string, error) {
	raw := s.str(name, def)
	seen := make(map[rune]bool, len(raw))
	for _, r := range raw {
		if !isAlphanumeric(r) {
			return "", fmt.Errorf("%s must only contain ASCII letters and digits, got %q", name, r)
		}
		if seen[r] {
			return "", fmt.Errorf("%s must not repeat characters, %q appears twice", name, r)
		}
		seen[r] = true
	}
	if len(seen) < 2 {
		return "", fmt.Errorf("%s must contain at least two characters", name)
	}
	return raw, nil
}

func (s *source) directory(name string) (string, error) {
	raw, ok := s.lookup(name)
	if !ok {
		return "", fmt.Errorf("%s environment variable must be set", name)
	}
	return existingDir(name, raw)
}

func existingDir(name, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", name, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s %q does not exist", name, abs)
		}
		return "", fmt.Errorf("%s %q: %w", name, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s %q is not a directory", name, abs)
	}
	return abs, nil
}

func ensureDir(name, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", name, path, err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("%s %q: %w", name, abs, err)
	}
	return existingDir(name, abs)
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
