// Package chart draws the dashboard line chart: one line per metric column,
// plotted against the date column.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"skupulse/internal/dataprocessing"
	"skupulse/pkg/contracts/domain"
)

// DefaultTitle is the chart title used when Config.Title is empty.
const DefaultTitle = "Daily Performance Metrics"

// Format selects the output encoding of Render.
type Format string

const (
	FormatPNG  Format = "png"
	FormatSVG  Format = "svg"
	FormatJSON Format = "json"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	default:
		return "image/png"
	}
}

// ParseFormat accepts png, svg and json; the empty string means png.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatSVG, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

var (
	// ErrNothingToPlot means none of the metric columns has a value.
	ErrNothingToPlot = errors.New("no metric values to plot")
	// ErrNotMetric means a requested column is missing or not numeric.
	ErrNotMetric = errors.New("column is not a metric")
)

// Config sets the image size and title.
type Config struct {
	Width  int
	Height int
	Title  string
}

// Point is one value of a series. Value is nil for an empty cell.
type Point struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Series is the line of one metric column.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Data is the chart as plain values, for clients that draw it themselves.
type Data struct {
	Title  string   `json:"title"`
	XAxis  string   `json:"x_axis"`
	Series []Series `json:"series"`
}

// Renderer turns tables into charts.
type Renderer struct {
	cfg    Config
	logger *slog.Logger
}

// NewRenderer applies defaults of 1500x700 and DefaultTitle.
func NewRenderer(cfg Config, logger *slog.Logger) *Renderer {
	if cfg.Width <= 0 {
		cfg.Width = 1500
	}
	if cfg.Height <= 0 {
		cfg.Height = 700
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cfg: cfg, logger: logger.With(slog.String("component", "chart"))}
}

// BuildData extracts the series of the given metric columns, ordered by date.
// With no metrics every number column is used.
func (r *Renderer) BuildData(table *domain.Table, metrics ...string) (*Data, error) {
	if len(metrics) == 0 {
		metrics = dataprocessing.MetricColumns(table)
	}
	dates := table.Dates()
	order := make([]int, table.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]].Before(dates[order[b]]) })

	data := &Data{Title: r.cfg.Title, XAxis: table.DateColumn}
	for _, name := range metrics {
		col, ok := table.Column(name)
		if !ok || col.Kind != domain.ColumnKindNumber {
			return nil, fmt.Errorf("%w: %q", ErrNotMetric, name)
		}
		s := Series{Name: name, Points: make([]Point, 0, len(order))}
		for _, i := range order {
			p := Point{Date: dates[i].Format(domain.DateLayout)}
			if v, ok := col.Float(i); ok {
				v := v
				p.Value = &v
			}
			s.Points = append(s.Points, p)
		}
		data.Series = append(data.Series, s)
	}
	return data, nil
}

// Render writes the chart of the given metrics in format to w.
func (r *Renderer) Render(w io.Writer, table *domain.Table, format Format, metrics ...string) error {
	data, err := r.BuildData(table, metrics...)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		return json.NewEncoder(w).Encode(data)
	}

	series := r.lineSeries(data)
	if len(series) == 0 {
		return ErrNothingToPlot
	}

	ch := gochart.Chart{
		Title:      data.Title,
		Width:      r.cfg.Width,
		Height:     r.cfg.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis: gochart.XAxis{
			Name:           data.XAxis,
			ValueFormatter: gochart.TimeDateValueFormatter,
		},
		YAxis:  gochart.YAxis{Name: "value"},
		Series: series,
	}
	if yr := flatRange(series); yr != nil {
		ch.YAxis.Range = yr
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	provider := gochart.PNG
	if format == FormatSVG {
		provider = gochart.SVG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render %s chart: %w", format, err)
	}
	r.logger.Debug("chart rendered",
		slog.String("format", string(format)),
		slog.Int("series", len(series)),
		slog.Int("rows", table.NumRows()))
	return nil
}

func (r *Renderer) lineSeries(data *Data) []gochart.Series {
	var out []gochart.Series
	for i, s := range data.Series {
		var xs []time.Time
		var ys []float64
		for _, p := range s.Points {
			if p.Value == nil || math.IsNaN(*p.Value) {
				continue
			}
			t, err := time.Parse(domain.DateLayout, p.Date)
			if err != nil {
				continue
			}
			xs = append(xs, t)
			ys = append(ys, *p.Value)
		}
		if len(xs) == 0 {
			continue
		}
		// go-chart needs two distinct x values to build a range.
		if xs[0].Equal(xs[len(xs)-1]) {
			xs = append(xs, xs[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		}
		out = append(out, gochart.TimeSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(gochart.GetDefaultColor(i)),
		})
	}
	return out
}

// flatRange widens the y axis when every value is the same, which go-chart
// cannot scale on its own. It returns nil otherwise.
func flatRange(series []gochart.Series) *gochart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, y := range s.(gochart.TimeSeries).YValues {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
	}
	if lo != hi {
		return nil
	}
	pad := math.Abs(lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func lineStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    3,
	}
}
