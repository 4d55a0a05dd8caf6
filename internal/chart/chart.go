// Package chart builds Plotly figure payloads for price series and
// forecasts. Figures marshal to the {"data": [...], "layout": {...}} shape
// that Plotly.newPlot accepts.
package chart

import (
	"fmt"
	"time"

	"stockcast/internal/domain"
)

// Style selects how the main price trace is drawn.
type Style string

const (
	StyleCandlestick Style = "candlestick"
	StyleLine        Style = "line"
)

// ParseStyle validates s as a Style.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleCandlestick, StyleLine:
		return Style(s), nil
	}
	return "", fmt.Errorf("unsupported chart style %q", s)
}

// Figure is a Plotly figure.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one Plotly trace. Only the fields used by stockcast are modelled.
type Trace struct {
	Type       string      `json:"type"`
	Name       string      `json:"name,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	X          []time.Time `json:"x"`
	Y          []*float64  `json:"y,omitempty"`
	Open       []float64   `json:"open,omitempty"`
	High       []float64   `json:"high,omitempty"`
	Low        []float64   `json:"low,omitempty"`
	Close      []float64   `json:"close,omitempty"`
	YAxis      string      `json:"yaxis,omitempty"`
	Fill       string      `json:"fill,omitempty"`
	FillColor  string      `json:"fillcolor,omitempty"`
	Line       *Line       `json:"line,omitempty"`
	Marker     *Marker     `json:"marker,omitempty"`
	ShowLegend *bool       `json:"showlegend,omitempty"`
}

// Line styles a scatter trace.
type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

// Marker styles bar traces.
type Marker struct {
	Color   string  `json:"color,omitempty"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Layout is the figure layout.
type Layout struct {
	Title     string `json:"title,omitempty"`
	Template  string `json:"template,omitempty"`
	Height    int    `json:"height,omitempty"`
	HoverMode string `json:"hovermode,omitempty"`
	XAxis     Axis   `json:"xaxis"`
	YAxis     Axis   `json:"yaxis"`
	YAxis2    *Axis  `json:"yaxis2,omitempty"`
}

// Axis configures one axis.
type Axis struct {
	Title       string       `json:"title,omitempty"`
	Overlaying  string       `json:"overlaying,omitempty"`
	Side        string       `json:"side,omitempty"`
	ShowGrid    *bool        `json:"showgrid,omitempty"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

// RangeSlider toggles the x-axis range slider.
type RangeSlider struct {
	Visible bool `json:"visible"`
}

const (
	colorPrice     = "#1f77b4"
	colorVolume    = "rgba(128,128,128,0.4)"
	colorForecast  = "#ff7f0e"
	colorBand      = "rgba(255,127,14,0.2)"
	colorHistory   = "#7f7f7f"
	chartHeight    = 600
	chartTemplate  = "plotly_white"
	volumeAxisName = "y2"
)

func boolPtr(b bool) *bool { return &b }

// Main draws the current series as candlesticks or a close line, with
// volume bars on a secondary axis when any bar reports volume.
func Main(symbol string, series *domain.Series, style Style) *Figure {
	if series == nil {
		series = &domain.Series{}
	}
	n := series.Len()
	x := make([]time.Time, n)
	for i, b := range series.Bars {
		x[i] = b.Timestamp
	}

	var price Trace
	switch style {
	case StyleLine:
		y := make([]*float64, n)
		for i := range series.Bars {
			y[i] = &series.Bars[i].Close
		}
		price = Trace{Type: "scatter", Mode: "lines", Name: symbol, X: x, Y: y, Line: &Line{Color: colorPrice, Width: 2}}
	default:
		price = Trace{Type: "candlestick", Name: symbol, X: x,
			Open: make([]float64, n), High: make([]float64, n), Low: make([]float64, n), Close: make([]float64, n)}
		for i, b := range series.Bars {
			price.Open[i], price.High[i], price.Low[i], price.Close[i] = b.Open, b.High, b.Low, b.Close
		}
	}

	fig := &Figure{
		Data: []Trace{price},
		Layout: Layout{
			Title:     fmt.Sprintf("%s %s", symbol, periodLabel(series.Period)),
			Template:  chartTemplate,
			Height:    chartHeight,
			HoverMode: "x unified",
			XAxis:     Axis{Title: "Date", RangeSlider: &RangeSlider{Visible: false}},
			YAxis:     Axis{Title: "Price"},
		},
	}

	if vol, ok := volumes(series.Bars); ok {
		fig.Data = append(fig.Data, Trace{
			Type: "bar", Name: "Volume", X: x, Y: vol, YAxis: volumeAxisName,
			Marker: &Marker{Color: colorVolume},
		})
		fig.Layout.YAxis2 = &Axis{Title: "Volume", Overlaying: "y", Side: "right", ShowGrid: boolPtr(false)}
	}
	return fig
}

// Prediction draws the forecast line and its interval band, preceded by the
// recent history when given. It returns nil for an empty forecast.
func Prediction(symbol string, history *domain.Series, forecast *domain.ForecastResult) *Figure {
	if forecast == nil || len(forecast.Points) == 0 {
		return nil
	}
	pts := forecast.Points
	x := make([]time.Time, len(pts))
	yhat := make([]*float64, len(pts))
	upper := make([]*float64, len(pts))
	lower := make([]*float64, len(pts))
	for i := range pts {
		x[i] = pts[i].Timestamp
		yhat[i], upper[i], lower[i] = &pts[i].Close, &pts[i].High, &pts[i].Low
	}

	var data []Trace
	if history.Len() > 0 {
		hx := make([]time.Time, history.Len())
		hy := make([]*float64, history.Len())
		for i := range history.Bars {
			hx[i], hy[i] = history.Bars[i].Timestamp, &history.Bars[i].Close
		}
		data = append(data, Trace{Type: "scatter", Mode: "lines", Name: "Historical", X: hx, Y: hy,
			Line: &Line{Color: colorHistory, Width: 1.5}})
	}
	data = append(data,
		Trace{Type: "scatter", Mode: "lines", Name: "Upper bound", X: x, Y: upper,
			Line: &Line{Width: 0}, ShowLegend: boolPtr(false)},
		Trace{Type: "scatter", Mode: "lines", Name: "Confidence interval", X: x, Y: lower,
			Line: &Line{Width: 0}, Fill: "tonexty", FillColor: colorBand},
		Trace{Type: "scatter", Mode: "lines", Name: "Prediction", X: x, Y: yhat,
			Line: &Line{Color: colorForecast, Width: 2, Dash: "dash"}},
	)

	title := symbol + " price prediction"
	if s := forecast.Sentiment; s != nil {
		title = fmt.Sprintf("%s (sentiment %s %+.2f)", title, s.Label, s.Score)
	}
	return &Figure{
		Data: data,
		Layout: Layout{
			Title:     title,
			Template:  chartTemplate,
			Height:    chartHeight,
			HoverMode: "x unified",
			XAxis:     Axis{Title: "Date"},
			YAxis:     Axis{Title: "Price"},
		},
	}
}

// volumes returns the volume column, with nil for unknown values, and
// whether any bar reported one.
func volumes(bars []domain.Bar) ([]*float64, bool) {
	out := make([]*float64, len(bars))
	var found bool
	for i, b := range bars {
		if b.Volume == nil {
			continue
		}
		v := float64(*b.Volume)
		out[i] = &v
		found = true
	}
	return out, found
}

func periodLabel(p domain.Period) string {
	switch p {
	case domain.Period1D:
		return "1 day"
	case domain.Period1W:
		return "1 week"
	case domain.Period1M:
		return "1 month"
	case domain.Period3M:
		return "3 months"
	case domain.Period6M:
		return "6 months"
	case domain.Period1Y:
		return "1 year"
	}
	return string(p)
}
