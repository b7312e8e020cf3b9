package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"skupulse/internal/config"
)

func decodeLines(t *testing.T, data string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_Outputs(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantConsole bool
		wantFile    bool
	}{
		{"console", config.LogOutputConsole, true, false},
		{"file", config.LogOutputFile, false, true},
		{"both", config.LogOutputBoth, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "app.log")
			var console bytes.Buffer

			logger, file, err := NewLogger(config.LoggingConfig{
				Level: "info", Output: tt.output, FilePath: path,
			}, &console)
			require.NoError(t, err)
			logger.Info("Upload ingested", "rows", 10)
			if file != nil {
				require.NoError(t, file.Close())
			}

			assert.Equal(t, tt.wantConsole, strings.Contains(console.String(), "Upload ingested"))

			data, err := os.ReadFile(path)
			if !tt.wantFile {
				assert.True(t, os.IsNotExist(err))
				return
			}
			require.NoError(t, err)
			entries := decodeLines(t, string(data))
			require.Len(t, entries, 1)
			assert.Equal(t, "Upload ingested", entries[0]["msg"])
			assert.Equal(t, float64(10), entries[0]["rows"])
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "warn"}, &console)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestTraceHandler_InjectsIDs(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "info"}, &console)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(WithTraceID(context.Background(), "req-1"), "op")
	logger.With("component", "test").InfoContext(ctx, "with trace")
	span.End()

	entries := decodeLines(t, console.String())
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["trace_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entries[0]["otel_trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entries[0]["span_id"])
	assert.Equal(t, "test", entries[0]["component"])
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level: "info", Output: config.LogOutputFile, FilePath: path,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again)

	GetLogger().Info("persisted")
	require.NoError(t, CloseLogFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "persisted")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing id is kept")

	assert.NotNil(t, LoggerWithContext(ctx))
	assert.NotNil(t, WithComponent(nil, "x"))
	logger := GetLogger()
	assert.Same(t, logger, WithError(logger, nil))
}
