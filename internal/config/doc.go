// Package config provides centralized configuration management for SKU Pulse.
//
// # Configuration Sources
//
// Configuration is built from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML config file (SKUPULSE_CONFIG_FILE, or config.yaml / configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables are namespaced with SKUPULSE and the section name:
//
//	SKUPULSE_SERVER_PORT=8080
//	SKUPULSE_INGEST_DELIMITER=";"
//	SKUPULSE_INGEST_DATE_FORMAT=DD.MM.YYYY
//	SKUPULSE_INGEST_REQUIRED_COLUMNS=date,SKU,cost,NB2Bs,nB2B CPA
//	SKUPULSE_CACHE_MAX_BYTES=67108864
//	SKUPULSE_SESSION_TTL=30m
//	SKUPULSE_TELEMETRY_TRACING_EXPORTER=stdout
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Ingest.ToOptions()
//
// Each section converts to the configuration type of the package it drives:
// IngestConfig.ToOptions, CacheConfig.ToCache, SessionConfig.ToStore and
// ChartConfig.ToRenderer.
package config
