package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"skupulse/internal/cache"
	"skupulse/internal/chart"
	"skupulse/internal/dataprocessing"
	"skupulse/internal/session"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Ingest    IngestConfig    `yaml:"ingest" envconfig:"INGEST"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Chart     ChartConfig     `yaml:"chart" envconfig:"CHART"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SlogLevel converts Level to a slog level. Unknown values map to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// IngestConfig holds the table ingestion settings and upload limits.
type IngestConfig struct {
	// Delimiter is a single character; "tab" and `\t` mean a tab.
	Delimiter         string   `yaml:"delimiter" envconfig:"DELIMITER"`
	DateFormat        string   `yaml:"date_format" envconfig:"DATE_FORMAT"`
	DateColumn        string   `yaml:"date_column" envconfig:"DATE_COLUMN"`
	KeyColumn         string   `yaml:"key_column" envconfig:"KEY_COLUMN"`
	RequiredColumns   []string `yaml:"required_columns" envconfig:"REQUIRED_COLUMNS"`
	DecimalSeparator  string   `yaml:"decimal_separator" envconfig:"DECIMAL_SEPARATOR"`
	FallbackEncoding  string   `yaml:"fallback_encoding" envconfig:"FALLBACK_ENCODING"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"ALLOWED_EXTENSIONS"`
	// HiddenColumns are left out of row listings and exports.
	HiddenColumns []string `yaml:"hidden_columns" envconfig:"HIDDEN_COLUMNS"`
}

// ParseDelimiter converts a configured delimiter string to a rune.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`, "\t":
		return '\t', nil
	case "semicolon":
		return ';', nil
	case "comma":
		return ',', nil
	case "pipe":
		return '|', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ToOptions converts the ingest settings to parser options.
func (c IngestConfig) ToOptions() (dataprocessing.Options, error) {
	opts := dataprocessing.DefaultOptions()
	if c.Delimiter != "" {
		r, err := ParseDelimiter(c.Delimiter)
		if err != nil {
			return opts, err
		}
		opts.Delimiter = r
	}
	if c.DecimalSeparator != "" {
		r, err := ParseDelimiter(c.DecimalSeparator)
		if err != nil {
			return opts, fmt.Errorf("decimal separator: %w", err)
		}
		opts.DecimalSeparator = r
	}
	if c.DateFormat != "" {
		opts.DateFormat = c.DateFormat
	}
	if c.DateColumn != "" {
		opts.DateColumn = c.DateColumn
	}
	if c.KeyColumn != "" {
		opts.KeyColumn = c.KeyColumn
	}
	if len(c.RequiredColumns) > 0 {
		opts.RequiredColumns = append([]string(nil), c.RequiredColumns...)
	}
	if c.FallbackEncoding != "" {
		opts.FallbackEncoding = c.FallbackEncoding
	}
	return opts, opts.Validate()
}

// CacheConfig bounds the ingested table cache.
type CacheConfig struct {
	MaxBytes   int64 `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	MaxEntries int   `yaml:"max_entries" envconfig:"MAX_ENTRIES"`
	Disabled   bool  `yaml:"disabled" envconfig:"DISABLED"`
}

// ToCache converts to the cache package configuration.
func (c CacheConfig) ToCache() cache.Config {
	return cache.Config{MaxBytes: c.MaxBytes, MaxEntries: c.MaxEntries, Disabled: c.Disabled}
}

// SessionConfig controls browser sessions.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL"`
	MaxSessions   int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS"`
	CookieName    string        `yaml:"cookie_name" envconfig:"COOKIE_NAME"`
	CookieSecure  bool          `yaml:"cookie_secure" envconfig:"COOKIE_SECURE"`
}

// ToStore converts to the session store configuration.
func (c SessionConfig) ToStore() session.Config {
	return session.Config{TTL: c.TTL, SweepInterval: c.SweepInterval, MaxSessions: c.MaxSessions}
}

// ChartConfig controls rendered charts.
type ChartConfig struct {
	Width  int    `yaml:"width" envconfig:"WIDTH"`
	Height int    `yaml:"height" envconfig:"HEIGHT"`
	Title  string `yaml:"title" envconfig:"TITLE"`
	// Metrics are the plotted columns. Empty means every number column.
	Metrics []string `yaml:"metrics" envconfig:"METRICS"`
}

// ToRenderer converts to the chart renderer configuration.
func (c ChartConfig) ToRenderer() chart.Config {
	return chart.Config{Width: c.Width, Height: c.Height, Title: c.Title}
}

// TelemetryConfig controls OpenTelemetry.
type TelemetryConfig struct {
	ServiceName     string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingExporter string `yaml:"tracing_exporter" envconfig:"TRACING_EXPORTER"`
	MetricsEnabled  bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// Load builds the configuration from defaults, the optional config file and
// environment variables, in increasing precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// envconfig only touches fields whose variables are set, so file and
	// default values survive.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration and fills normalizable fields.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server read timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server write timeout must be positive"))
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one allowed origin must be specified"))
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}

	switch c.Logging.Output {
	case LogOutputConsole, LogOutputFile, LogOutputBoth:
	case "":
		c.Logging.Output = LogOutputConsole
	default:
		errs = append(errs, fmt.Errorf("invalid logging output %q", c.Logging.Output))
	}
	if c.Logging.Output != LogOutputConsole && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if _, err := c.Ingest.ToOptions(); err != nil {
		errs = append(errs, fmt.Errorf("ingest: %w", err))
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("ingest max upload bytes must be positive"))
	}

	if c.Cache.MaxBytes < 0 || c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache bounds must not be negative"))
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid chart size %dx%d", c.Chart.Width, c.Chart.Height))
	}

	switch c.Telemetry.TracingExporter {
	case TracingExporterNone, TracingExporterStdout:
	case "":
		c.Telemetry.TracingExporter = TracingExporterNone
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q", c.Telemetry.TracingExporter))
	}

	return errors.Join(errs...)
}

// getConfigFilePath returns the path to the config file, or "" when none exists.
func getConfigFilePath() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path
	}
	for _, location := range configFileLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	ingest := dataprocessing.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   LogOutputConsole,
			FilePath: DefaultLogFile,
		},
		Ingest: IngestConfig{
			Delimiter:         string(ingest.Delimiter),
			DateFormat:        ingest.DateFormat,
			DateColumn:        ingest.DateColumn,
			KeyColumn:         ingest.KeyColumn,
			RequiredColumns:   ingest.RequiredColumns,
			DecimalSeparator:  string(ingest.DecimalSeparator),
			FallbackEncoding:  ingest.FallbackEncoding,
			MaxUploadBytes:    DefaultMaxUploadBytes,
			AllowedExtensions: []string{".csv", ".txt", ".tsv", ".xlsx"},
			HiddenColumns:     []string{ingest.KeyColumn},
		},
		Cache: CacheConfig{
			MaxBytes:   cache.DefaultMaxBytes,
			MaxEntries: cache.DefaultMaxEntries,
		},
		Session: SessionConfig{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
			MaxSessions:   DefaultMaxSessions,
			CookieName:    DefaultCookieName,
		},
		Chart: ChartConfig{
			Width:  DefaultChartWidth,
			Height: DefaultChartHeight,
			Title:  chart.DefaultTitle,
		},
		Telemetry: TelemetryConfig{
			ServiceName:     "skupulse",
			TracingExporter: TracingExporterNone,
			MetricsEnabled:  true,
		},
	}
}
