package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"skupulse/internal/cache"
	"skupulse/internal/chart"
	"skupulse/internal/config"
	"skupulse/internal/dataprocessing"
	"skupulse/internal/exporter"
	"skupulse/internal/infrastructure"
	"skupulse/internal/session"
	"skupulse/internal/validation"
	api "skupulse/pkg/contracts/api/v1"
	"skupulse/pkg/contracts/domain"
)

// DashboardDeps are the collaborators of a DashboardService.
type DashboardDeps struct {
	Cache    *cache.TableCache
	Sessions *session.Store
	Charts   *chart.Renderer
	Exporter *exporter.Exporter
	Files    *validation.FileValidator
	// Options are the ingest defaults; uploads may override delimiter and date format.
	Options dataprocessing.Options
	// HiddenColumns are left out of rows and exports.
	HiddenColumns []string
	// ChartMetrics are plotted when a request names none.
	ChartMetrics []string
	Metrics      *infrastructure.BusinessMetrics
	Logger       *slog.Logger
}

// DashboardService ties ingestion, caching and the per-session table to the
// filter, chart and export operations of the dashboard.
type DashboardService struct {
	cache         *cache.TableCache
	sessions      *session.Store
	charts        *chart.Renderer
	exporter      *exporter.Exporter
	files         *validation.FileValidator
	options       dataprocessing.Options
	hiddenColumns []string
	chartMetrics  []string
	metrics       *infrastructure.BusinessMetrics
	logger        *slog.Logger
}

// NewDashboardService creates the service. Cache, Sessions and Options are
// required; the remaining collaborators get defaults.
func NewDashboardService(deps DashboardDeps) (*DashboardService, error) {
	if deps.Cache == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("%w: cache and session store are required", ErrServiceUnavailable)
	}
	if err := deps.Options.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Charts == nil {
		deps.Charts = chart.NewRenderer(chart.Config{}, logger)
	}
	if deps.Exporter == nil {
		deps.Exporter = exporter.New(logger)
	}
	if deps.Files == nil {
		deps.Files = validation.NewFileValidator(logger, 0, nil)
	}
	return &DashboardService{
		cache:         deps.Cache,
		sessions:      deps.Sessions,
		charts:        deps.Charts,
		exporter:      deps.Exporter,
		files:         deps.Files,
		options:       deps.Options,
		hiddenColumns: deps.HiddenColumns,
		chartMetrics:  deps.ChartMetrics,
		metrics:       deps.Metrics,
		logger:        logger.With(slog.String("component", "dashboard_service")),
	}, nil
}

// UploadRequest carries one uploaded file.
type UploadRequest struct {
	// SessionID is the caller's session, if any. A new session is created
	// when it is empty, unknown or expired.
	SessionID string
	FileName  string
	Data      []byte
	Overrides api.UploadOptions
}

// Output is a rendered chart or export.
type Output struct {
	ContentType string
	FileName    string
	Data        []byte
}

// Upload ingests a file and makes it the session's table. Byte-identical
// uploads with the same options are served from the table cache.
func (s *DashboardService) Upload(ctx context.Context, req UploadRequest) (*api.UploadResponse, error) {
	size := int64(len(req.Data))
	if err := s.files.ValidateUpload(req.FileName, size); err != nil {
		return nil, err
	}
	if err := s.files.ValidateContent(req.FileName, req.Data); err != nil {
		return nil, err
	}

	opts, err := s.uploadOptions(req.Overrides)
	if err != nil {
		return nil, err
	}

	format := dataprocessing.FormatFromName(req.FileName)
	key := cache.Key(req.Data, string(format)+"|"+opts.Fingerprint())
	infrastructure.SetSpanAttributes(ctx,
		attribute.String("ingest.file", req.FileName),
		attribute.String("ingest.format", string(format)),
		attribute.Int64("ingest.bytes", size))

	start := time.Now()
	table, hit, err := s.cache.GetOrLoad(ctx, key, size, func() (*domain.Table, error) {
		return dataprocessing.IngestAs(format, req.Data, opts)
	})
	rows := 0
	if table != nil {
		rows = table.NumRows()
	}
	infrastructure.RecordIngest(ctx, s.metrics, infrastructure.IngestRecord{
		Format:   string(format),
		Bytes:    size,
		Rows:     rows,
		Duration: time.Since(start),
		CacheHit: hit,
		Err:      err,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "ingestion failed",
			slog.String("file", req.FileName),
			slog.String("kind", dataprocessing.ErrorKind(err)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("ingest %s: %w", req.FileName, err)
	}

	summary, err := dataprocessing.Summarize(table)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", req.FileName, err)
	}

	sess, created := s.sessions.GetOrCreate(req.SessionID)
	sess, err = s.sessions.Update(sess.ID, func(st *session.Session) {
		st.FileName = req.FileName
		st.FileSize = size
		st.Table = table
		st.TableKey = key
		st.Filter = defaultFilter(table, summary)
		st.UploadedAt = time.Now()
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "file ingested",
		slog.String("session_id", sess.ID),
		slog.Bool("new_session", created),
		slog.String("file", req.FileName),
		slog.Int64("bytes", size),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", len(table.Columns)),
		slog.Bool("cache_hit", hit))

	return &api.UploadResponse{
		SessionID: sess.ID,
		FileName:  req.FileName,
		FileSize:  size,
		CacheHit:  hit,
		Table:     summary,
	}, nil
}

func (s *DashboardService) uploadOptions(overrides api.UploadOptions) (dataprocessing.Options, error) {
	opts := s.options
	opts.RequiredColumns = append([]string(nil), s.options.RequiredColumns...)
	if overrides.Delimiter != "" {
		r, err := config.ParseDelimiter(overrides.Delimiter)
		if err != nil {
			return opts, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		opts.Delimiter = r
	}
	if overrides.DateFormat != "" {
		opts.DateFormat = overrides.DateFormat
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// defaultFilter selects the first SKU over the whole date range, which is
// what the dashboard shows right after an upload.
func defaultFilter(table *domain.Table, summary *domain.TableSummary) domain.FilterCriteria {
	var c domain.FilterCriteria
	if len(summary.Keys) > 0 {
		c.Key = summary.Keys[0]
	}
	if first, last, ok := dataprocessing.DateRange(table); ok {
		c.Start, c.End = first, last
	}
	return c
}

// Table describes the session's table and its current filter selection.
func (s *DashboardService) Table(ctx context.Context, sessionID string) (*api.TableResponse, error) {
	sess, err := s.sessionWithTable(sessionID)
	if err != nil {
		return nil, err
	}
	summary, err := dataprocessing.Summarize(sess.Table)
	if err != nil {
		return nil, err
	}
	return &api.TableResponse{
		SessionID:  sess.ID,
		FileName:   sess.FileName,
		FileSize:   sess.FileSize,
		UploadedAt: sess.UploadedAt,
		Filter:     sess.Filter,
		Table:      summary,
	}, nil
}

// SKUs lists the distinct values of the key column.
func (s *DashboardService) SKUs(ctx context.Context, sessionID string) (*api.SKUsResponse, error) {
	sess, err := s.sessionWithTable(sessionID)
	if err != nil {
		return nil, err
	}
	skus, err := dataprocessing.UniqueValues(sess.Table, dataprocessing.KeyColumn(sess.Table))
	if err != nil {
		return nil, err
	}
	return &api.SKUsResponse{SKUs: skus, Count: len(skus)}, nil
}

// Rows returns the filtered rows without the hidden columns.
func (s *DashboardService) Rows(ctx context.Context, sessionID string, req api.FilterRequest) (*api.RowsResponse, error) {
	filtered, criteria, err := s.filter(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	visible := filtered.Without(s.hiddenColumns...)

	resp := &api.RowsResponse{
		Columns: make([]domain.ColumnInfo, len(visible.Columns)),
		Rows:    make([][]interface{}, visible.NumRows()),
		Count:   visible.NumRows(),
		Filter:  api.NewFilterEcho(criteria),
	}
	for i, c := range visible.Columns {
		resp.Columns[i] = domain.ColumnInfo{Name: c.Name, Kind: c.Kind}
	}
	for i := 0; i < visible.NumRows(); i++ {
		resp.Rows[i] = visible.RowValues(i)
	}
	return resp, nil
}

// Summary returns the analytics of the filtered rows.
func (s *DashboardService) Summary(ctx context.Context, sessionID string, req api.FilterRequest) (*api.SummaryResponse, error) {
	filtered, criteria, err := s.filter(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	summary, err := dataprocessing.Summarize(filtered)
	if err != nil {
		return nil, err
	}
	return &api.SummaryResponse{Filter: api.NewFilterEcho(criteria), Summary: summary}, nil
}

// Chart renders the metric columns of the filtered rows.
func (s *DashboardService) Chart(ctx context.Context, sessionID string, req api.ChartRequest) (*Output, error) {
	format, err := chart.ParseFormat(req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	filtered, criteria, err := s.filter(ctx, sessionID, req.Filter())
	if err != nil {
		return nil, err
	}

	metrics := splitList(req.Metrics)
	if len(metrics) == 0 {
		metrics = s.chartMetrics
	}

	var buf bytes.Buffer
	if err := s.charts.Render(&buf, filtered, format, metrics...); err != nil {
		return nil, err
	}
	infrastructure.RecordOutput(ctx, s.chartCounter(), string(format))

	return &Output{
		ContentType: format.ContentType(),
		FileName:    outputName(s.fileBase(sessionID), criteria.Key, "chart", "."+string(format)),
		Data:        buf.Bytes(),
	}, nil
}

// Export writes the filtered rows, without the hidden columns, as CSV or XLSX.
func (s *DashboardService) Export(ctx context.Context, sessionID string, req api.ExportRequest) (*Output, error) {
	format, err := exporter.ParseFormat(req.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	filtered, criteria, err := s.filter(ctx, sessionID, req.Filter())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, filtered, format, exporter.Options{Exclude: s.hiddenColumns}); err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	infrastructure.RecordOutput(ctx, s.exportCounter(), string(format))

	return &Output{
		ContentType: format.ContentType(),
		FileName:    outputName(s.fileBase(sessionID), criteria.Key, "export", format.Extension()),
		Data:        buf.Bytes(),
	}, nil
}

// EndSession discards the session and its table.
func (s *DashboardService) EndSession(ctx context.Context, sessionID string) (*api.SessionEndResponse, error) {
	if sessionID == "" {
		return nil, session.ErrNotFound
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	s.sessions.Delete(sessionID)
	s.logger.InfoContext(ctx, "session ended", slog.String("session_id", sessionID))
	return &api.SessionEndResponse{SessionID: sessionID, Ended: true}, nil
}

// Options returns the ingest defaults.
func (s *DashboardService) Options() dataprocessing.Options {
	return s.options
}

// GetStats reports cache and session usage for the health endpoint.
func (s *DashboardService) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"cache":    s.cache.GetStats(),
		"sessions": s.sessions.GetStats(),
	}
}

// ParseCriteria converts a filter request into criteria. End before Start is
// rejected.
func ParseCriteria(req api.FilterRequest) (domain.FilterCriteria, error) {
	c := domain.FilterCriteria{Key: strings.TrimSpace(req.SKU)}
	var err error
	if req.Start != "" {
		if c.Start, err = time.Parse(domain.DateLayout, req.Start); err != nil {
			return c, fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidInput, req.Start)
		}
	}
	if req.End != "" {
		if c.End, err = time.Parse(domain.DateLayout, req.End); err != nil {
			return c, fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidInput, req.End)
		}
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return c, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput, req.End, req.Start)
	}
	return c, nil
}

// filter applies req to the session's table and remembers it as the
// session's selection.
func (s *DashboardService) filter(ctx context.Context, sessionID string, req api.FilterRequest) (*domain.Table, domain.FilterCriteria, error) {
	criteria, err := ParseCriteria(req)
	if err != nil {
		return nil, criteria, err
	}
	sess, err := s.sessionWithTable(sessionID)
	if err != nil {
		return nil, criteria, err
	}
	if _, err := s.sessions.Update(sess.ID, func(st *session.Session) { st.Filter = criteria }); err != nil {
		return nil, criteria, err
	}

	filtered, err := dataprocessing.Filter(sess.Table, criteria)
	if err != nil {
		s.logger.DebugContext(ctx, "filter matched no rows",
			slog.String("session_id", sess.ID),
			slog.String("sku", criteria.Key),
			slog.String("error", err.Error()))
		return nil, criteria, err
	}
	infrastructure.SetSpanAttributes(ctx,
		attribute.String("filter.sku", criteria.Key),
		attribute.Int("filter.rows", filtered.NumRows()))
	return filtered, criteria, nil
}

func (s *DashboardService) sessionWithTable(sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, ErrNoTable
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTable, err)
	}
	if !sess.HasTable() {
		return nil, ErrNoTable
	}
	return sess, nil
}

func (s *DashboardService) chartCounter() metric.Int64Counter {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.ChartRenders
}

func (s *DashboardService) exportCounter() metric.Int64Counter {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Exports
}

func (s *DashboardService) fileBase(sessionID string) string {
	sess, err := s.sessions.Get(sessionID)
	if err != nil || sess.FileName == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(sess.FileName), filepath.Ext(sess.FileName))
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// outputName builds a download name such as "report_SKU-1_export.csv".
func outputName(base, sku, kind, ext string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{base, sku, kind} {
		p = strings.Trim(unsafeNameChars.ReplaceAllString(p, "_"), "_")
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_") + ext
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
