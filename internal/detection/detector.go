package detection

// PersonClassID is the class id of "person" in the reference model's label
// scheme (COCO).
const PersonClassID = 0

// Detection is one raw model detection.
type Detection struct {
	ClassID    int
	Confidence float64
	Box        Box
}

// SizeHint asks the model to run inference at the frame's native size
// instead of its default square input.
type SizeHint struct {
	Width  int
	Height int
	// Rect enables rectangular (non-square) inference.
	Rect bool
}

// PredictResult is the raw model output for one image. FrameWidth and
// FrameHeight carry the frame shape the model actually saw; 0 means the
// model could not report it.
type PredictResult struct {
	Detections  []Detection
	FrameWidth  int
	FrameHeight int
}

// Predictor is the black-box detection model boundary. Concrete
// implementations (and their heavyweight runtimes) stay swappable without
// touching ROI or orchestration logic.
type Predictor interface {
	Predict(imagePath string, confidence float64, hint *SizeHint) (*PredictResult, error)
}

// CountResult is the ROI-filtered person count for one image. Width and
// Height are the resolved frame dimensions, 0 when undeterminable.
type CountResult struct {
	Count  int
	Width  int
	Height int
	Boxes  []Box
}

// Counter turns raw model output into a queue-length estimate: it keeps only
// person-class boxes and, when the frame size is known, only those whose
// anchor point lies inside the scaled ROI.
type Counter struct {
	predictor  Predictor
	roi        Polygon
	confidence float64
}

// NewCounter creates a counter. A nil roi falls back to DefaultROI.
func NewCounter(predictor Predictor, roi Polygon, confidence float64) *Counter {
	if roi == nil {
		roi = DefaultROI
	}
	return &Counter{
		predictor:  predictor,
		roi:        roi,
		confidence: confidence,
	}
}

// Confidence returns the configured confidence threshold.
func (c *Counter) Confidence() float64 {
	return c.confidence
}

// Count runs inference on the image and returns the filtered person count.
// Caller-supplied dimensions (0 = unknown) are passed to the model as an
// inference hint and act as a fallback when the model does not report the
// frame shape itself.
func (c *Counter) Count(imagePath string, width, height int) (CountResult, error) {
	var hint *SizeHint
	if width > 0 && height > 0 {
		hint = &SizeHint{Width: width, Height: height, Rect: true}
	}

	result, err := c.predictor.Predict(imagePath, c.confidence, hint)
	if err != nil {
		return CountResult{}, err
	}
	if result == nil {
		return CountResult{Boxes: []Box{}}, nil
	}

	// The frame shape the model saw wins over the caller's values.
	if result.FrameWidth > 0 && result.FrameHeight > 0 {
		width = result.FrameWidth
		height = result.FrameHeight
	}

	persons := make([]Box, 0, len(result.Detections))
	for _, det := range result.Detections {
		if det.ClassID != PersonClassID {
			continue
		}
		persons = append(persons, det.Box)
	}

	roi := ScaledROI(c.roi, width, height)
	if roi == nil {
		return CountResult{Count: len(persons), Width: width, Height: height, Boxes: persons}, nil
	}

	filtered := make([]Box, 0, len(persons))
	for _, box := range persons {
		x, y := Anchor(box)
		if PointInPolygon(x, y, roi) {
			filtered = append(filtered, box)
		}
	}

	return CountResult{Count: len(filtered), Width: width, Height: height, Boxes: filtered}, nil
}

// ROI returns the counter's base-resolution ROI polygon.
func (c *Counter) ROI() Polygon {
	return c.roi
}
