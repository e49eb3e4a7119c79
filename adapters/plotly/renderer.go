package plotly

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"tbdash/domain/mapview"
)

// Options are the presentation settings shared by every rendered map.
// Only data dependent parts (values, range, titles) vary per feature.
type Options struct {
	ColorScale        string
	Projection        string
	Width             int
	Height            int
	SliderX           float64
	SliderLen         float64
	ColorbarLen       float64
	ColorbarThickness float64
	ColorbarX         float64
	LandColor         string
	FrameDurationMS   int
}

// DefaultOptions returns the dashboard's standard map styling
func DefaultOptions() Options {
	return Options{
		ColorScale:        "Viridis",
		Projection:        "natural earth",
		Width:             1200,
		Height:            700,
		SliderX:           0.2,
		SliderLen:         0.6,
		ColorbarLen:       0.5,
		ColorbarThickness: 10,
		ColorbarX:         0.9,
		LandColor:         "lightgray",
		FrameDurationMS:   500,
	}
}

// Renderer builds plotly.js choropleth figures
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer with the given options
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Options returns the renderer's presentation settings
func (r *Renderer) Options() Options {
	return r.opts
}

// Render encodes the figure for view as JSON
func (r *Renderer) Render(view mapview.View) ([]byte, error) {
	fig, err := r.Build(view)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fig)
}

// Build assembles the figure for view. The degenerate no-data view yields
// a figure with only a centred title and no geometry. Inputs are assumed
// to be validated by the caller.
func (r *Renderer) Build(view mapview.View) (*Figure, error) {
	if view.NoData || view.Request == nil {
		msg := view.Message
		if msg == "" {
			msg = mapview.NoDataMessage
		}
		return &Figure{
			Data:   []Trace{},
			Layout: Layout{Title: r.title(msg)},
		}, nil
	}

	req := view.Request
	table := req.Table
	locations, err := table.Text(req.LocationField)
	if err != nil {
		return nil, fmt.Errorf("location field: %w", err)
	}
	hover, err := table.Text(req.HoverField)
	if err != nil {
		return nil, fmt.Errorf("hover field: %w", err)
	}
	values, err := table.Measure(req.ColorField)
	if err != nil {
		return nil, fmt.Errorf("color field: %w", err)
	}
	steps, err := table.Ints(req.AnimationField)
	if err != nil {
		return nil, fmt.Errorf("animation field: %w", err)
	}

	byStep := make(map[int][]int)
	for i, s := range steps {
		byStep[s] = append(byStep[s], i)
	}
	keys := make([]int, 0, len(byStep))
	for s := range byStep {
		keys = append(keys, s)
	}
	sort.Ints(keys)

	frames := make([]Frame, 0, len(keys))
	sliderSteps := make([]SliderStep, 0, len(keys))
	for _, s := range keys {
		name := strconv.Itoa(s)
		rows := byStep[s]
		trace := Trace{
			Type:         "choropleth",
			Name:         "",
			Locations:    make([]string, len(rows)),
			LocationMode: "ISO-3",
			Z:            make([]Number, len(rows)),
			HoverText:    make([]string, len(rows)),
			HoverTemplate: fmt.Sprintf("<b>%%{hovertext}</b><br><br>%s=%s<br>%s=%%{location}<br>%s=%%{z}<extra></extra>",
				req.AnimationField, name, req.LocationField, req.ColorField),
			ColorAxis: "coloraxis",
			Geo:       "geo",
		}
		for j, i := range rows {
			trace.Locations[j] = locations[i]
			trace.Z[j] = Number(values[i])
			trace.HoverText[j] = hover[i]
		}
		frames = append(frames, Frame{Name: name, Data: []Trace{trace}})
		sliderSteps = append(sliderSteps, SliderStep{
			Label:  name,
			Method: "animate",
			Args:   []interface{}{[]string{name}, animation(0)},
		})
	}

	var initial []Trace
	if len(frames) > 0 {
		initial = frames[0].Data
	}

	fig := &Figure{
		Data:   initial,
		Frames: frames,
		Layout: Layout{
			Title:  r.title(req.Title),
			Width:  r.opts.Width,
			Height: r.opts.Height,
			Margin: &Margin{L: 0, R: 20, T: 50, B: 0},
			Geo: &Geo{
				ShowFrame:      false,
				ShowCoastlines: true,
				LandColor:      r.opts.LandColor,
				Projection:     Projection{Type: r.opts.Projection},
			},
			ColorAxis: &ColorAxis{
				ColorScale: r.opts.ColorScale,
				CMin:       req.ColorRange.Min,
				CMax:       req.ColorRange.Max,
				ColorBar: ColorBar{
					Title:     Title{Text: req.ColorbarTitle},
					Ticks:     "outside",
					Len:       r.opts.ColorbarLen,
					Thickness: r.opts.ColorbarThickness,
					X:         r.opts.ColorbarX,
				},
			},
			Sliders: []Slider{{
				Active:       0,
				X:            r.opts.SliderX,
				Len:          r.opts.SliderLen,
				XAnchor:      "left",
				Y:            0,
				YAnchor:      "top",
				Pad:          Pad{T: 60, B: 10},
				CurrentValue: CurrentValue{Prefix: req.AnimationField + "=", Visible: true},
				Steps:        sliderSteps,
			}},
			UpdateMenus: []UpdateMenu{{
				Type:       "buttons",
				Direction:  "left",
				ShowActive: false,
				X:          0.1,
				XAnchor:    "right",
				Y:          0,
				YAnchor:    "top",
				Pad:        Pad{T: 70, R: 10},
				Buttons: []Button{
					{Label: "&#9654;", Method: "animate", Args: []interface{}{nil, animation(r.opts.FrameDurationMS)}},
					{Label: "&#9724;", Method: "animate", Args: []interface{}{[]interface{}{nil}, animation(0)}},
				},
			}},
		},
	}
	return fig, nil
}

func (r *Renderer) title(text string) Title {
	return Title{Text: text, X: 0.5, XAnchor: "center"}
}

func animation(durationMS int) map[string]interface{} {
	return map[string]interface{}{
		"frame":       map[string]interface{}{"duration": durationMS, "redraw": true},
		"mode":        "immediate",
		"fromcurrent": true,
		"transition":  map[string]interface{}{"duration": durationMS, "easing": "linear"},
	}
}
