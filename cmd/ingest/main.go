// Command ingest loads a performance export from disk, optionally filters it
// by SKU and date range, writes an export and a chart, and prints a JSON
// report to stdout. With -dir every export in a directory is processed.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"skupulse/internal/chart"
	"skupulse/internal/config"
	"skupulse/internal/dataprocessing"
	"skupulse/internal/exporter"
	"skupulse/internal/files"
	"skupulse/internal/infrastructure"
	"skupulse/internal/services"
	"skupulse/internal/validation"
	api "skupulse/pkg/contracts/api/v1"
	"skupulse/pkg/contracts/domain"
)

// options are the parsed command line flags.
type options struct {
	configFile string
	file       string
	dir        string
	out        string
	delimiter  string
	dateFormat string
	sku        string
	from       string
	to         string
	export     string
	chart      string
}

// report is printed for every processed file.
type report struct {
	File         string               `json:"file"`
	Rows         int                  `json:"rows"`
	FilteredRows int                  `json:"filtered_rows"`
	Filter       api.FilterEcho       `json:"filter"`
	Summary      *domain.TableSummary `json:"summary,omitempty"`
	Export       string               `json:"export,omitempty"`
	Chart        string               `json:"chart,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// errFailed marks a batch in which at least one file failed.
var errFailed = errors.New("one or more files failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("Ingest failed", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configFile, "config", "", "config file (defaults to the usual locations)")
	fs.StringVar(&o.file, "file", "", "performance export to ingest (.csv, .tsv, .txt, .xlsx)")
	fs.StringVar(&o.dir, "dir", "", "ingest every export in this directory instead of -file")
	fs.StringVar(&o.out, "out", ".", "output directory for -dir mode")
	fs.StringVar(&o.delimiter, "delimiter", "", "field delimiter override, e.g. ';', 'tab' or 'comma'")
	fs.StringVar(&o.dateFormat, "date-format", "", "date format override, e.g. DD.MM.YYYY")
	fs.StringVar(&o.sku, "sku", "", "keep only rows of this SKU")
	fs.StringVar(&o.from, "from", "", "first date to keep (YYYY-MM-DD)")
	fs.StringVar(&o.to, "to", "", "last date to keep (YYYY-MM-DD)")
	fs.StringVar(&o.export, "export", "", "export file (.csv or .xlsx); with -dir, the format")
	fs.StringVar(&o.chart, "chart", "", "chart file (.png, .svg or .json); with -dir, the format")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch {
	case o.file == "" && o.dir == "":
		fs.Usage()
		return o, errors.New("one of -file or -dir is required")
	case o.file != "" && o.dir != "":
		return o, errors.New("-file and -dir are mutually exclusive")
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return err
	}
	logger, logFile, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	p, err := newProcessor(cfg, o, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if o.file != "" {
		rep, err := p.process(o.file, o.export, o.chart)
		if err != nil {
			return err
		}
		return enc.Encode(rep)
	}

	reports, err := p.processDir(o.dir, o.out)
	if encErr := enc.Encode(reports); encErr != nil {
		return encErr
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// processor holds what is shared by every file of a run.
type processor struct {
	opts      dataprocessing.Options
	criteria  domain.FilterCriteria
	hidden    []string
	metrics   []string
	validator *validation.FileValidator
	exporter  *exporter.Exporter
	charts    *chart.Renderer
	logger    *slog.Logger
	o         options
}

func newProcessor(cfg *config.Config, o options, logger *slog.Logger) (*processor, error) {
	opts, err := cfg.Ingest.ToOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid ingest configuration: %w", err)
	}
	if o.delimiter != "" {
		if opts.Delimiter, err = config.ParseDelimiter(o.delimiter); err != nil {
			return nil, err
		}
	}
	if o.dateFormat != "" {
		opts.DateFormat = o.dateFormat
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	criteria, err := services.ParseCriteria(api.FilterRequest{SKU: o.sku, Start: o.from, End: o.to})
	if err != nil {
		return nil, err
	}

	return &processor{
		opts:      opts,
		criteria:  criteria,
		hidden:    cfg.Ingest.HiddenColumns,
		metrics:   cfg.Chart.Metrics,
		validator: validation.NewFileValidator(logger, cfg.Ingest.MaxUploadBytes, cfg.Ingest.AllowedExtensions),
		exporter:  exporter.New(logger),
		charts:    chart.NewRenderer(cfg.Chart.ToRenderer(), logger),
		logger:    logger,
		o:         o,
	}, nil
}

// process ingests one file and writes the requested outputs.
func (p *processor) process(path, exportPath, chartPath string) (*report, error) {
	if err := p.validator.ValidateFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := p.validator.ValidateContent(filepath.Base(path), data); err != nil {
		return nil, err
	}

	table, err := dataprocessing.IngestFile(path, data, p.opts)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	filtered, err := dataprocessing.Filter(table, p.criteria)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", path, err)
	}
	summary, err := dataprocessing.Summarize(filtered)
	if err != nil {
		return nil, err
	}

	rep := &report{
		File:         path,
		Rows:         table.NumRows(),
		FilteredRows: filtered.NumRows(),
		Filter:       api.NewFilterEcho(p.criteria),
		Summary:      summary,
	}

	if exportPath != "" {
		if err := p.validator.ValidateOutputPath(exportPath); err != nil {
			return nil, err
		}
		if err := p.exporter.WriteFile(exportPath, filtered, exporter.Options{Exclude: p.hidden}); err != nil {
			return nil, fmt.Errorf("export %s: %w", exportPath, err)
		}
		rep.Export = exportPath
	}

	if chartPath != "" {
		if err := p.writeChart(chartPath, filtered); err != nil {
			return nil, fmt.Errorf("chart %s: %w", chartPath, err)
		}
		rep.Chart = chartPath
	}

	p.logger.Info("File ingested",
		slog.String("file", path),
		slog.Int("rows", rep.Rows),
		slog.Int("filtered_rows", rep.FilteredRows))
	return rep, nil
}

func (p *processor) writeChart(path string, table *domain.Table) error {
	format, err := chart.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	if err := p.validator.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.charts.Render(f, table, format, p.metrics...); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// processDir handles every export in dir. A failing file is reported and
// the batch continues; the returned error is errFailed if any file failed.
func (p *processor) processDir(dir, out string) ([]*report, error) {
	discovery := files.NewDiscovery("", p.validator.Extensions())
	found, err := discovery.FindTables(dir)
	if err != nil {
		return nil, err
	}

	exportExt, err := formatExtension(p.o.export, func(s string) error {
		_, err := exporter.ParseFormat(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	chartExt, err := formatExtension(p.o.chart, func(s string) error {
		_, err := chart.ParseFormat(s)
		return err
	})
	if err != nil {
		return nil, err
	}

	reports := make([]*report, 0, len(found))
	failed := 0
	for _, f := range found {
		var exportPath, chartPath string
		if exportExt != "" {
			exportPath = files.OutputPath(out, f.Path, "filtered", exportExt)
		}
		if chartExt != "" {
			chartPath = files.OutputPath(out, f.Path, "chart", chartExt)
		}

		rep, err := p.process(f.Path, exportPath, chartPath)
		if err != nil {
			failed++
			p.logger.Warn("File failed",
				slog.String("file", f.Path),
				slog.String("error_kind", dataprocessing.ErrorKind(err)),
				slog.String("error", err.Error()))
			rep = &report{File: f.Path, Filter: api.NewFilterEcho(p.criteria), Error: err.Error()}
		}
		reports = append(reports, rep)
	}

	p.logger.Info("Directory processed",
		slog.String("dir", dir),
		slog.Int("files", len(found)),
		slog.Int("failed", failed))
	if failed > 0 {
		return reports, fmt.Errorf("%w: %d of %d", errFailed, failed, len(found))
	}
	return reports, nil
}

// formatExtension checks a bare format name such as "csv" and returns its
// file extension. An empty name yields "".
func formatExtension(name string, parse func(string) error) (string, error) {
	if name == "" {
		return "", nil
	}
	name = strings.TrimPrefix(strings.ToLower(name), ".")
	if err := parse(name); err != nil {
		return "", err
	}
	return "." + name, nil
}
