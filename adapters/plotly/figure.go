package plotly

import (
	"encoding/json"
	"math"
	"strconv"
)

// Figure is a plotly.js figure document: initial traces, layout and one
// animation frame per slider step.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
	Frames []Frame `json:"frames,omitempty"`
}

// Trace is a single choropleth trace
type Trace struct {
	Type          string   `json:"type"`
	Name          string   `json:"name"`
	Locations     []string `json:"locations"`
	LocationMode  string   `json:"locationmode"`
	Z             []Number `json:"z"`
	HoverText     []string `json:"hovertext"`
	HoverTemplate string   `json:"hovertemplate"`
	ColorAxis     string   `json:"coloraxis"`
	Geo           string   `json:"geo"`
}

// Frame is one animation step
type Frame struct {
	Name string  `json:"name"`
	Data []Trace `json:"data"`
}

// Number is a float that encodes NaN as JSON null
type Number float64

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

type Layout struct {
	Title       Title        `json:"title"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	Margin      *Margin      `json:"margin,omitempty"`
	Geo         *Geo         `json:"geo,omitempty"`
	ColorAxis   *ColorAxis   `json:"coloraxis,omitempty"`
	Sliders     []Slider     `json:"sliders,omitempty"`
	UpdateMenus []UpdateMenu `json:"updatemenus,omitempty"`
}

type Title struct {
	Text    string  `json:"text"`
	X       float64 `json:"x,omitempty"`
	XAnchor string  `json:"xanchor,omitempty"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Geo struct {
	ShowFrame      bool       `json:"showframe"`
	ShowCoastlines bool       `json:"showcoastlines"`
	LandColor      string     `json:"landcolor"`
	Projection     Projection `json:"projection"`
}

type Projection struct {
	Type string `json:"type"`
}

type ColorAxis struct {
	ColorScale string   `json:"colorscale"`
	CMin       float64  `json:"cmin"`
	CMax       float64  `json:"cmax"`
	ColorBar   ColorBar `json:"colorbar"`
}

type ColorBar struct {
	Title     Title   `json:"title"`
	Ticks     string  `json:"ticks"`
	Len       float64 `json:"len"`
	Thickness float64 `json:"thickness"`
	X         float64 `json:"x"`
}

type Pad struct {
	T int `json:"t,omitempty"`
	B int `json:"b,omitempty"`
	R int `json:"r,omitempty"`
}

type CurrentValue struct {
	Prefix  string `json:"prefix"`
	Visible bool   `json:"visible"`
}

type Slider struct {
	Active       int          `json:"active"`
	X            float64      `json:"x"`
	Len          float64      `json:"len"`
	XAnchor      string       `json:"xanchor"`
	Y            float64      `json:"y"`
	YAnchor      string       `json:"yanchor"`
	Pad          Pad          `json:"pad"`
	CurrentValue CurrentValue `json:"currentvalue"`
	Steps        []SliderStep `json:"steps"`
}

type SliderStep struct {
	Label  string        `json:"label"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

type UpdateMenu struct {
	Type       string   `json:"type"`
	Direction  string   `json:"direction"`
	ShowActive bool     `json:"showactive"`
	X          float64  `json:"x"`
	XAnchor    string   `json:"xanchor"`
	Y          float64  `json:"y"`
	YAnchor    string   `json:"yanchor"`
	Pad        Pad      `json:"pad"`
	Buttons    []Button `json:"buttons"`
}

type Button struct {
	Label  string        `json:"label"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}
