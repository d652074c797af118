package detection

import "math"

// Base resolution the ROI polygon is defined against. Polygons are rescaled
// from this resolution to whatever frame size a capture actually has.
const (
	BaseWidth  = 1920
	BaseHeight = 1080
)

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Polygon is an ordered sequence of vertices. Fewer than 3 vertices is
// degenerate and contains no points.
type Polygon []Point

// Box is an axis-aligned bounding box (x1, y1) top-left, (x2, y2)
// bottom-right.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// DefaultROI is the queue footprint in front of the camera at the base
// resolution.
var DefaultROI = Polygon{
	{303, 465},
	{354, 465},
	{890, 527},
	{1279, 588},
	{1510, 641},
	{1683, 702},
	{1820, 783},
	{1888, 841},
	{1739, 900},
	{1195, 817},
	{876, 705},
	{293, 500},
}

// ScalePolygon rescales a base-resolution polygon to the given frame size.
// Each vertex scales independently; non-uniform aspect changes are accepted
// as-is.
func ScalePolygon(polygon Polygon, width, height int) Polygon {
	xScale := float64(width) / float64(BaseWidth)
	yScale := float64(height) / float64(BaseHeight)

	scaled := make(Polygon, 0, len(polygon))
	for _, p := range polygon {
		scaled = append(scaled, Point{
			X: int(math.Round(float64(p.X) * xScale)),
			Y: int(math.Round(float64(p.Y) * yScale)),
		})
	}
	return scaled
}

// PointInPolygon reports whether the point lies inside the polygon using a
// ray-casting test. Points exactly on an edge are implementation-defined by
// the float comparison; callers must not rely on either outcome.
func PointInPolygon(x, y float64, polygon Polygon) bool {
	count := len(polygon)
	if count < 3 {
		return false
	}

	inside := false
	j := count - 1
	for i := 0; i < count; i++ {
		xi, yi := float64(polygon[i].X), float64(polygon[i].Y)
		xj, yj := float64(polygon[j].X), float64(polygon[j].Y)

		// Near-zero divisor stands in for horizontal edges.
		divisor := yj - yi
		if divisor == 0 {
			divisor = 1e-9
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/divisor+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Anchor returns the bottom-center of a bounding box. The ROI test uses this
// point rather than the centroid: for a standing person it approximates the
// feet position, which is what actually stands inside the queue area.
func Anchor(box Box) (float64, float64) {
	return float64(box.X1+box.X2) / 2.0, float64(box.Y2)
}

// ScaledROI returns the ROI polygon scaled to the given frame size, or nil
// when either dimension is unknown — meaning no ROI filtering is possible
// and detections pass through unfiltered.
func ScaledROI(roi Polygon, width, height int) Polygon {
	if width <= 0 || height <= 0 {
		return nil
	}
	return ScalePolygon(roi, width, height)
}
