package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skupulse/internal/dataprocessing"
	"skupulse/internal/shared/testutil"
)

func writeSample(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRun_SingleFile(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "performance.csv", testutil.SampleCSV())
	exportPath := filepath.Join(dir, "out", "a100.csv")
	chartPath := filepath.Join(dir, "out", "a100.png")

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"-file", input,
		"-sku", "A-100",
		"-from", "2024-03-02",
		"-export", exportPath,
		"-chart", chartPath,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var rep report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, input, rep.File)
	assert.Equal(t, 10, rep.Rows)
	assert.Equal(t, 4, rep.FilteredRows)
	assert.Equal(t, "A-100", rep.Filter.SKU)
	assert.Equal(t, "2024-03-02", rep.Filter.Start)
	require.NotNil(t, rep.Summary)
	assert.Equal(t, []string{"A-100"}, rep.Summary.Keys)

	exported, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(exported), "2024-03-05")
	assert.NotContains(t, string(exported), "2024-03-01")
	assert.NotContains(t, string(exported), "A-100", "hidden SKU column is not exported")

	png, err := os.ReadFile(chartPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRun_Overrides(t *testing.T) {
	dir := t.TempDir()
	csv := testutil.JoinCSV(",", testutil.SampleHeader, [][]string{
		{"2024-03-01", "A-100", "10", "2", "5"},
		{"2024-03-02", "A-100", "12", "3", "4"},
	})
	input := writeSample(t, dir, "comma.csv", []byte(csv))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-file", input, "-delimiter", "comma", "-date-format", "YYYY-MM-DD"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var rep report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, "2024-03-01", rep.Summary.FirstDate)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "performance.csv", testutil.SampleCSV())
	missingCost := writeSample(t, dir, "missing.csv", []byte("date;SKU\n01.03.2024;A-100\n"))

	tests := []struct {
		name    string
		args    []string
		wantErr string
		is      error
		as      interface{}
	}{
		{name: "no input", args: nil, wantErr: "one of -file or -dir is required"},
		{name: "both inputs", args: []string{"-file", input, "-dir", dir}, wantErr: "mutually exclusive"},
		{name: "missing file", args: []string{"-file", filepath.Join(dir, "nope.csv")}, wantErr: "does not exist"},
		{name: "bad delimiter", args: []string{"-file", input, "-delimiter", "ab"}, wantErr: "single character"},
		{name: "end before start", args: []string{"-file", input, "-from", "2024-03-05", "-to", "2024-03-01"}, wantErr: "before start"},
		{name: "unknown sku", args: []string{"-file", input, "-sku", "Z-999"}, is: dataprocessing.ErrNoData},
		{name: "missing column", args: []string{"-file", missingCost}, as: new(*dataprocessing.SchemaError)},
		{name: "bad chart format", args: []string{"-file", input, "-chart", filepath.Join(dir, "c.gif")}, wantErr: "chart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.as != nil {
				assert.ErrorAs(t, err, tt.as)
			}
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Directory(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "reports")
	writeSample(t, in, "week1.csv", testutil.SampleCSV())
	writeSample(t, in, "week2.xlsx", testutil.SampleXLSX(t))
	writeSample(t, in, "notes.pdf", []byte("ignored"))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-dir", in, "-out", out, "-export", "csv", "-chart", "svg"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var reports []report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &reports))
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.Empty(t, rep.Error)
		assert.Equal(t, 10, rep.Rows)
		assert.FileExists(t, rep.Export)
		assert.FileExists(t, rep.Chart)
	}
	assert.FileExists(t, filepath.Join(out, "week1_filtered.csv"))
	assert.FileExists(t, filepath.Join(out, "week2_chart.svg"))
}

func TestRun_DirectoryWithFailures(t *testing.T) {
	in := t.TempDir()
	writeSample(t, in, "good.csv", testutil.SampleCSV())
	writeSample(t, in, "bad.csv", []byte("date;SKU;cost;NB2Bs;nB2B CPA\n2024/03/01;A-100;1;1;1\n"))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-dir", in}, &stdout, &stderr)
	require.ErrorIs(t, err, errFailed)

	var reports []report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &reports))
	require.Len(t, reports, 2)

	byName := map[string]report{}
	for _, rep := range reports {
		byName[filepath.Base(rep.File)] = rep
	}
	assert.Empty(t, byName["good.csv"].Error)
	assert.Contains(t, byName["bad.csv"].Error, "does not match date format")
}

func TestFormatExtension(t *testing.T) {
	parse := func(s string) error {
		if s != "csv" {
			return assert.AnError
		}
		return nil
	}

	ext, err := formatExtension("", parse)
	require.NoError(t, err)
	assert.Empty(t, ext)

	ext, err = formatExtension(".CSV", parse)
	require.NoError(t, err)
	assert.Equal(t, ".csv", ext)

	_, err = formatExtension("pdf", parse)
	assert.Error(t, err)
}
