package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file and no env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, ";", cfg.Ingest.Delimiter)
				assert.Equal(t, "DD.MM.YYYY", cfg.Ingest.DateFormat)
				assert.Equal(t, []string{"date", "SKU", "cost", "NB2Bs", "nB2B CPA"}, cfg.Ingest.RequiredColumns)
				assert.Equal(t, int64(64<<20), cfg.Cache.MaxBytes)
				assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
				assert.Equal(t, "skupulse_session", cfg.Session.CookieName)
				assert.Equal(t, TracingExporterNone, cfg.Telemetry.TracingExporter)
			},
		},
		{
			name: "file values override defaults",
			file: `
server:
  port: 9090
  read_timeout: 5s
ingest:
  delimiter: ","
  date_format: ISO
  required_columns: [date, cost]
cache:
  max_bytes: 1024
session:
  ttl: 10m
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
				assert.Equal(t, ",", cfg.Ingest.Delimiter)
				assert.Equal(t, []string{"date", "cost"}, cfg.Ingest.RequiredColumns)
				assert.Equal(t, int64(1024), cfg.Cache.MaxBytes)
				assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
			},
		},
		{
			name: "env overrides file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"SKUPULSE_SERVER_PORT":             "7070",
				"SKUPULSE_INGEST_DELIMITER":        "tab",
				"SKUPULSE_INGEST_REQUIRED_COLUMNS": "date,SKU",
				"SKUPULSE_LOGGING_LEVEL":           "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "tab", cfg.Ingest.Delimiter)
				assert.Equal(t, []string{"date", "SKU"}, cfg.Ingest.RequiredColumns)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"SKUPULSE_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "invalid delimiter",
			file:    "ingest:\n  delimiter: \"::\"\n",
			wantErr: "single character",
		},
		{
			name:    "invalid date format",
			file:    "ingest:\n  date_format: \"QQ.WW\"\n",
			wantErr: "ingest",
		},
		{
			name:    "invalid tracing exporter",
			file:    "telemetry:\n  tracing_exporter: jaeger\n",
			wantErr: "invalid tracing exporter",
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8181\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr())
}

func TestValidate_Normalizes(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = ""
	cfg.Session.CookieName = ""
	cfg.Telemetry.TracingExporter = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, LogOutputConsole, cfg.Logging.Output)
	assert.Equal(t, DefaultCookieName, cfg.Session.CookieName)
	assert.Equal(t, TracingExporterNone, cfg.Telemetry.TracingExporter)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Session.TTL = 0
	cfg.Chart.Width = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "session ttl")
	assert.Contains(t, err.Error(), "invalid chart size")
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{";", ';', false},
		{",", ',', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"\t", '\t', false},
		{"pipe", '|', false},
		{"", 0, true},
		{";;", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIngestConfig_ToOptions(t *testing.T) {
	ic := Default().Ingest
	ic.Delimiter = ","
	ic.DecimalSeparator = ","
	ic.DateFormat = "DD/MM/YY"
	ic.FallbackEncoding = "windows-1252"

	opts, err := ic.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, ',', opts.Delimiter)
	assert.Equal(t, ',', opts.DecimalSeparator)
	assert.Equal(t, "DD/MM/YY", opts.DateFormat)
	assert.Equal(t, "windows-1252", opts.FallbackEncoding)
	assert.Equal(t, "SKU", opts.KeyColumn)

	ic.FallbackEncoding = "ebcdic"
	_, err = ic.ToOptions()
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := Default()

	assert.Equal(t, cfg.Cache.MaxEntries, cfg.Cache.ToCache().MaxEntries)
	assert.Equal(t, cfg.Session.TTL, cfg.Session.ToStore().TTL)
	assert.Equal(t, 1500, cfg.Chart.ToRenderer().Width)
	assert.Equal(t, "Daily Performance Metrics", cfg.Chart.ToRenderer().Title)
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LoggingConfig{Level: "debug"}.SlogLevel().String())
	assert.Equal(t, "WARN", LoggingConfig{Level: "warn"}.SlogLevel().String())
	assert.Equal(t, "INFO", LoggingConfig{Level: "nonsense"}.SlogLevel().String())
}
