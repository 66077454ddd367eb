package chart

import (
	"encoding/json"
	"fmt"
)

// Trace is one data series of a figure, loosely following the
// Plotly trace shape so frontends can feed it straight to a renderer.
type Trace struct {
	Type        string            `json:"type"`
	Name        string            `json:"name,omitempty"`
	X           []interface{}     `json:"x,omitempty"`
	Y           []interface{}     `json:"y,omitempty"`
	Z           [][]float64       `json:"z,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Values      []float64         `json:"values,omitempty"`
	Lat         []float64         `json:"lat,omitempty"`
	Lon         []float64         `json:"lon,omitempty"`
	Text        []string          `json:"text,omitempty"`
	Orientation string            `json:"orientation,omitempty"`
	Mode        string            `json:"mode,omitempty"`
	NBinsX      int               `json:"nbinsx,omitempty"`
	Marker      map[string]any    `json:"marker,omitempty"`
	Extra       map[string]string `json:"meta,omitempty"`
}

// Axis is the layout configuration of one axis.
type Axis struct {
	Title       string `json:"title,omitempty"`
	RangeSlider any    `json:"rangeslider,omitempty"`
}

// Shape is an annotation drawn over the plot area, used for the
// histogram mean line.
type Shape struct {
	Type string  `json:"type"`
	X0   float64 `json:"x0"`
	X1   float64 `json:"x1"`
	Y0   any     `json:"y0"`
	Y1   any     `json:"y1"`
	YRef string  `json:"yref,omitempty"`
	Line struct {
		Color string `json:"color"`
		Dash  string `json:"dash,omitempty"`
	} `json:"line"`
}

// Layout holds figure-wide presentation. Axes is keyed "xaxis",
// "xaxis2" .. "xaxis10" plus the matching y keys, mirroring subplot
// naming.
type Layout struct {
	Title       string           `json:"title,omitempty"`
	Axes        map[string]*Axis `json:"-"`
	HoverMode   any              `json:"hovermode"`
	Shapes      []Shape          `json:"shapes,omitempty"`
	PaperColor  string           `json:"paper_bgcolor,omitempty"`
	PlotColor   string           `json:"plot_bgcolor,omitempty"`
	FontColor   string           `json:"font_color,omitempty"`
	FontFamily  string           `json:"font_family,omitempty"`
	ColorScheme []string         `json:"colorway,omitempty"`
	MapCenter   *MapCenter       `json:"map_center,omitempty"`
}

// MapCenter positions a geographic projection.
type MapCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Figure is a complete renderable chart.
type Figure struct {
	Traces []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// NewFigure builds an empty figure with hover disabled, which is the
// only mode the embedding runtime supports.
func NewFigure(title string) *Figure {
	return &Figure{
		Layout: Layout{
			Title:     title,
			Axes:      make(map[string]*Axis),
			HoverMode: false,
		},
	}
}

// MarshalJSON flattens the Axes map into the layout object so the
// output matches the renderer's expected shape ("xaxis", "yaxis2",
// ...) instead of a nested map.
func (l Layout) MarshalJSON() ([]byte, error) {
	type plain Layout
	base, err := json.Marshal(plain(l))
	if err != nil {
		return nil, err
	}
	if len(l.Axes) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, axis := range l.Axes {
		raw, err := json.Marshal(axis)
		if err != nil {
			return nil, err
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// XAxis returns (creating if needed) the x-axis for subplot index n,
// where 1 names the base "xaxis".
func (f *Figure) XAxis(n int) *Axis {
	key := "xaxis"
	if n > 1 {
		key = fmt.Sprintf("xaxis%d", n)
	}
	axis, ok := f.Layout.Axes[key]
	if !ok {
		axis = &Axis{}
		f.Layout.Axes[key] = axis
	}
	return axis
}

// StripRangeSliders removes the range-slider widget from every
// x-axis up to subplot index 10. The embedding runtime rejects
// figures that carry one.
func (f *Figure) StripRangeSliders() {
	for n := 1; n <= 10; n++ {
		key := "xaxis"
		if n > 1 {
			key = fmt.Sprintf("xaxis%d", n)
		}
		if axis, ok := f.Layout.Axes[key]; ok {
			axis.RangeSlider = nil
		}
	}
}
