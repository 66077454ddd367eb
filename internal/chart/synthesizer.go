package chart

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
)

const (
	maxPieSlices        = 8
	horizontalBarLimit  = 10
	horizontalLabelLen  = 15
	histogramBins       = 20
	minNumericForMatrix = 3
	hoverColumnLimit    = 5
)

// Domain map center (Málaga province).
const (
	mapCenterLat = 36.7
	mapCenterLon = -4.4
)

// recognizedTypes is the closed set of chart types. Anything else is
// rewritten to bar.
var recognizedTypes = map[string]bool{
	"bar": true, "line": true, "scatter": true, "pie": true,
	"heatmap": true, "map": true, "histogram": true,
}

// Result carries the figure together with the normalized spec that
// produced it and any degradations applied along the way.
type Result struct {
	Figure *Figure         `json:"figure"`
	Spec   model.ChartSpec `json:"chart_spec"`
	Notes  []string        `json:"notes,omitempty"`
}

// Repair rewrites invalid or missing axis bindings in spec against
// the given frame, using the intent-indexed priority tables. It
// returns false when the frame offers no usable column at all. The
// chart type is left untouched: Synthesize owns that rewrite so the
// degradation is always noted.
func Repair(spec *model.ChartSpec, frame *dataset.Frame, tag intent.Tag) bool {
	if spec.XAxis == "" || !frame.HasColumn(spec.XAxis) {
		spec.XAxis = PickX(frame, tag)
	}
	if spec.YAxis == "" || !frame.HasColumn(spec.YAxis) {
		spec.YAxis = PickY(frame)
	}
	if spec.ColorBy != "" && !frame.HasColumn(spec.ColorBy) {
		spec.ColorBy = PickColor(frame, spec.XAxis, spec.YAxis)
	}
	if spec.SizeBy != "" && !frame.HasColumn(spec.SizeBy) {
		spec.SizeBy = PickSize(frame, spec.XAxis, spec.YAxis)
	}
	return spec.XAxis != "" && spec.YAxis != ""
}

// Synthesizer turns a chart spec plus a data frame into a themed,
// renderable figure.
type Synthesizer interface {
	Synthesize(spec model.ChartSpec, frame *dataset.Frame, tag intent.Tag, theme Theme) Result
}

type synthesizer struct{}

// NewSynthesizer builds the default synthesizer.
func NewSynthesizer() Synthesizer {
	return &synthesizer{}
}

func (s *synthesizer) Synthesize(spec model.ChartSpec, frame *dataset.Frame, tag intent.Tag, theme Theme) Result {
	result := Result{Spec: spec}

	if !recognizedTypes[spec.Type] {
		log.Warn().Str("chart_type", spec.Type).Msg("Unrecognized chart type rewritten to bar")
		result.note("tipo de gráfico %q no reconocido, se usa bar", spec.Type)
		result.Spec.Type = "bar"
	}
	if !Repair(&result.Spec, frame, tag) {
		log.Warn().
			Str("dataset", frame.Key).
			Str("chart_type", spec.Type).
			Msg("No usable columns for chart, emitting placeholder")
		result.Spec.Type = "bar"
		result.Figure = placeholderFigure()
		result.note("sin columnas utilizables en el dataset %s", frame.Key)
		s.finish(result.Figure, theme)
		return result
	}

	switch result.Spec.Type {
	case "line":
		result.Figure = s.line(&result, frame)
	case "scatter":
		result.Figure = s.scatter(&result, frame)
	case "pie":
		result.Figure = s.pie(&result, frame)
	case "heatmap":
		result.Figure = s.heatmap(&result, frame)
	case "histogram":
		result.Figure = s.histogram(&result, frame)
	case "map":
		result.Figure = s.geoMap(&result, frame)
	default:
		result.Figure = s.bar(&result, frame)
	}
	if result.Figure == nil {
		// A degraded type falls back to bar.
		result.Spec.Type = "bar"
		result.Figure = s.bar(&result, frame)
	}

	s.finish(result.Figure, theme)
	return result
}

// finish applies the range-slider removal before and after theming.
// Both passes are mandatory: themes must not reintroduce the widget.
func (s *synthesizer) finish(fig *Figure, theme Theme) {
	fig.StripRangeSliders()
	ApplyTheme(fig, theme)
	fig.StripRangeSliders()
}

func (r *Result) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

func (r *Result) frameData(frame *dataset.Frame) ([]string, []float64) {
	labels := frame.Strings(r.Spec.XAxis)
	values, ok := frame.Floats(r.Spec.YAxis)
	if !ok {
		values = make([]float64, len(labels))
	}
	return labels, values
}

func (s *synthesizer) bar(r *Result, frame *dataset.Frame) *Figure {
	labels, values := r.frameData(frame)
	fig := NewFigure(r.Spec.Title)

	horizontal := len(distinct(labels)) > horizontalBarLimit || longestLabel(labels) > horizontalLabelLen
	trace := Trace{Type: "bar", Name: r.Spec.YAxis}
	if horizontal {
		trace.Orientation = "h"
		trace.X = toAny(values)
		trace.Y = toAnyStrings(labels)
	} else {
		trace.X = toAnyStrings(labels)
		trace.Y = toAny(values)
	}
	if r.Spec.ColorBy != "" && frame.HasColumn(r.Spec.ColorBy) {
		trace.Extra = map[string]string{"color_by": r.Spec.ColorBy}
	}
	fig.Traces = append(fig.Traces, trace)
	fig.XAxis(1).Title = r.Spec.XAxis
	return fig
}

func (s *synthesizer) line(r *Result, frame *dataset.Frame) *Figure {
	values, ok := frame.Floats(r.Spec.YAxis)
	if !ok {
		r.note("line requiere un eje y numérico, se usa bar")
		return nil
	}

	trace := Trace{Type: "scatter", Mode: "lines+markers", Name: r.Spec.YAxis, Y: toAny(values)}
	if xs, ok := frame.Floats(r.Spec.XAxis); ok {
		trace.X = toAny(xs)
	} else {
		trace.X = toAnyStrings(frame.Strings(r.Spec.XAxis))
	}

	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	fig.XAxis(1).Title = r.Spec.XAxis
	return fig
}

func (s *synthesizer) scatter(r *Result, frame *dataset.Frame) *Figure {
	xs, okX := frame.Floats(r.Spec.XAxis)
	ys, okY := frame.Floats(r.Spec.YAxis)
	if !okX || !okY {
		r.note("scatter requiere ejes numéricos, se usa bar")
		return nil
	}

	trace := Trace{
		Type: "scatter",
		Mode: "markers",
		Name: r.Spec.YAxis,
		X:    toAny(xs),
		Y:    toAny(ys),
		Text: hoverText(frame),
	}
	if r.Spec.SizeBy == "" {
		r.Spec.SizeBy = PickSize(frame, r.Spec.XAxis, r.Spec.YAxis)
	}
	if r.Spec.SizeBy != "" {
		if sizes, ok := frame.Floats(r.Spec.SizeBy); ok {
			trace.Marker = map[string]any{"size": normalizeSizes(sizes)}
		}
	}
	if r.Spec.ColorBy != "" && frame.HasColumn(r.Spec.ColorBy) {
		trace.Extra = map[string]string{"color_by": r.Spec.ColorBy}
	}

	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	fig.XAxis(1).Title = r.Spec.XAxis
	return fig
}

func (s *synthesizer) pie(r *Result, frame *dataset.Frame) *Figure {
	labels := frame.Strings(r.Spec.XAxis)
	values, ok := frame.Floats(r.Spec.YAxis)
	if !ok {
		r.note("pie requiere un agregado numérico, se usa bar")
		return nil
	}

	totals := make(map[string]float64)
	order := make([]string, 0)
	for i, label := range labels {
		if _, seen := totals[label]; !seen {
			order = append(order, label)
		}
		if i < len(values) {
			totals[label] += values[i]
		}
	}
	if len(order) > maxPieSlices {
		r.note("pie con %d categorías supera el máximo de %d, se usa bar", len(order), maxPieSlices)
		return nil
	}

	trace := Trace{Type: "pie", Labels: order}
	for _, label := range order {
		trace.Values = append(trace.Values, totals[label])
	}
	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	return fig
}

func (s *synthesizer) heatmap(r *Result, frame *dataset.Frame) *Figure {
	numeric := make([]string, 0)
	for _, name := range frame.NumericColumns() {
		if name == "latitud" || name == "longitud" {
			continue
		}
		numeric = append(numeric, name)
	}
	if len(numeric) < minNumericForMatrix {
		r.note("heatmap requiere al menos %d columnas numéricas, se usa bar", minNumericForMatrix)
		return nil
	}

	series := make([][]float64, len(numeric))
	for i, name := range numeric {
		series[i], _ = frame.Floats(name)
	}
	matrix := make([][]float64, len(numeric))
	for i := range numeric {
		matrix[i] = make([]float64, len(numeric))
		for j := range numeric {
			matrix[i][j] = pearson(series[i], series[j])
		}
	}

	trace := Trace{Type: "heatmap", Z: matrix, X: toAnyStrings(numeric), Y: toAnyStrings(numeric)}
	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	return fig
}

func (s *synthesizer) histogram(r *Result, frame *dataset.Frame) *Figure {
	// The histogram is univariate: the numeric column of interest is
	// whichever of y/x holds numbers.
	column := r.Spec.YAxis
	values, ok := frame.Floats(column)
	if !ok {
		column = r.Spec.XAxis
		values, ok = frame.Floats(column)
	}
	if !ok || len(values) == 0 {
		r.note("histogram requiere una columna numérica, se usa bar")
		return nil
	}

	trace := Trace{Type: "histogram", Name: column, X: toAny(values), NBinsX: histogramBins}
	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	fig.XAxis(1).Title = column

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	line := Shape{Type: "line", X0: mean, X1: mean, Y0: 0, Y1: 1, YRef: "paper"}
	line.Line.Color = "#dc2626"
	line.Line.Dash = "dash"
	fig.Layout.Shapes = append(fig.Layout.Shapes, line)
	return fig
}

func (s *synthesizer) geoMap(r *Result, frame *dataset.Frame) *Figure {
	lats, okLat := frame.Floats("latitud")
	lons, okLon := frame.Floats("longitud")
	if !okLat || !okLon {
		r.note("el dataset %s no tiene coordenadas, se usa bar", frame.Key)
		return nil
	}

	trace := Trace{Type: "scattergeo", Mode: "markers", Lat: lats, Lon: lons, Text: hoverText(frame)}
	if r.Spec.SizeBy != "" {
		if sizes, ok := frame.Floats(r.Spec.SizeBy); ok {
			trace.Marker = map[string]any{"size": normalizeSizes(sizes)}
		}
	}
	fig := NewFigure(r.Spec.Title)
	fig.Traces = append(fig.Traces, trace)
	fig.Layout.MapCenter = &MapCenter{Lat: mapCenterLat, Lon: mapCenterLon}
	return fig
}

// placeholderFigure is the single-bar stand-in emitted when no axis
// can be repaired.
func placeholderFigure() *Figure {
	fig := NewFigure("Data unavailable")
	fig.Traces = append(fig.Traces, Trace{
		Type: "bar",
		X:    []interface{}{"sin datos"},
		Y:    []interface{}{0},
	})
	return fig
}

func hoverText(frame *dataset.Frame) []string {
	names := frame.ColumnNames()
	if len(names) > hoverColumnLimit {
		names = names[:hoverColumnLimit]
	}
	texts := make([]string, frame.NumRows())
	for row := 0; row < frame.NumRows(); row++ {
		text := ""
		for i, name := range names {
			if i > 0 {
				text += "<br>"
			}
			text += fmt.Sprintf("%s: %v", name, frame.Value(row, name))
		}
		texts[row] = text
	}
	return texts
}

func normalizeSizes(values []float64) []float64 {
	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	sizes := make([]float64, len(values))
	for i, v := range values {
		if maxVal > 0 {
			sizes[i] = 6 + 24*v/maxVal
		} else {
			sizes[i] = 6
		}
	}
	return sizes
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func longestLabel(labels []string) int {
	longest := 0
	for _, label := range labels {
		if n := len([]rune(label)); n > longest {
			longest = n
		}
	}
	return longest
}

func toAny(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toAnyStrings(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
