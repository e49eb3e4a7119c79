package mapview

import "tbdash/domain/dataset"

// NoDataMessage is the title shown when a feature has no usable values.
const NoDataMessage = "No data available for selected feature."

// Range is the colour normalisation interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Request is a fully parameterised choropleth rendering request.
type Request struct {
	Table          *dataset.Table `json:"-"`
	Feature        string         `json:"feature"`
	LocationField  string         `json:"location_field"`
	ColorField     string         `json:"color_field"`
	HoverField     string         `json:"hover_field"`
	AnimationField string         `json:"animation_field"`
	Title          string         `json:"title"`
	ColorRange     Range          `json:"color_range"`
	ColorbarTitle  string         `json:"colorbar_title"`
}

// View is the outcome of a feature selection: either a map request or
// the degenerate no-data result, which carries only a message.
type View struct {
	Feature string   `json:"feature"`
	NoData  bool     `json:"no_data"`
	Message string   `json:"message,omitempty"`
	Request *Request `json:"request,omitempty"`
}

// NoDataView builds the degenerate result for feature.
func NoDataView(feature string) View {
	return View{Feature: feature, NoData: true, Message: NoDataMessage}
}
