package config

import "time"

// Application constants
const (
	AppName = "SKU Pulse"

	// EnvPrefix namespaces every environment variable, e.g. SKUPULSE_SERVER_PORT.
	EnvPrefix = "SKUPULSE"

	// EnvConfigFile points at an explicit YAML config file.
	EnvConfigFile = "SKUPULSE_CONFIG_FILE"

	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultMaxUploadBytes = 32 << 20

	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultMaxSessions   = 1000
	DefaultCookieName    = "skupulse_session"

	DefaultChartWidth  = 1500
	DefaultChartHeight = 700

	DefaultLogFile = "logs/skupulse.log"
)

// Tracing exporters
const (
	TracingExporterNone   = "none"
	TracingExporterStdout = "stdout"
)

// Logging outputs
const (
	LogOutputConsole = "console"
	LogOutputFile    = "file"
	LogOutputBoth    = "both"
)

// configFileLocations are searched in order when EnvConfigFile is unset.
var configFileLocations = []string{
	"config.yaml",
	"configs/config.yaml",
	"../configs/config.yaml",
}
