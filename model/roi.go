package model

// Point is a point shape within a region of interest.
type Point struct {
	ID          int64
	Cx, Cy      float64
	TheZ, TheT  int
	TextValue   string
	Description string
}

// ROI is a named collection of shapes overlaid on an image.
type ROI struct {
	ID          int64
	Image       Ref
	Description string
	Shapes      []Point
	Details     Details
}

// AddShape appends a point to the region.
func (r *ROI) AddShape(p Point) {
	r.Shapes = append(r.Shapes, p)
}
