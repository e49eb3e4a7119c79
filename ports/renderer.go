package ports

import "tbdash/domain/mapview"

// FigureRenderer turns a map view into an encoded figure document that the
// browser charting library draws. Implementations must be pure.
type FigureRenderer interface {
	Render(view mapview.View) ([]byte, error)
}
