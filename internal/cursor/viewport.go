package cursor

// ScrollThreshold is the fraction of the document that must be scrolled
// past before the next page is requested.
const ScrollThreshold = 0.8

// Viewport describes a scroll position, in any consistent unit.
type Viewport struct {
	ScrollTop    float64
	ClientHeight float64
	ScrollHeight float64
}

// Reached reports whether the bottom of the viewport is at or beyond
// ScrollThreshold of the document height.
func (v Viewport) Reached() bool {
	if v.ScrollHeight <= 0 {
		return false
	}
	return (v.ScrollTop+v.ClientHeight)/v.ScrollHeight >= ScrollThreshold
}
