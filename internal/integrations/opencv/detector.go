package opencv

import (
	"fmt"
	"image"
	"os"

	"queue-watch-go/internal/config"
	"queue-watch-go/internal/detection"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

const (
	// Default square input size of the YOLO ONNX export.
	defaultInputSize = 640
	// YOLO input sides must be multiples of the network stride.
	inputStride = 32

	nmsThreshold = 0.45
)

// Detector runs a YOLO ONNX network through OpenCV's DNN module and
// implements detection.Predictor. Person class id in the model's COCO label
// scheme is 0, matching detection.PersonClassID.
type Detector struct {
	net       gocv.Net
	modelPath string
	modelName string
}

// NewDetector loads the ONNX model and configures the DNN backend/target.
func NewDetector(cfg config.DetectionConfig) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detection model not found at %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model from %s", cfg.ModelPath)
	}

	backend, target := resolveBackendTarget(cfg.Backend, cfg.Target)
	if err := net.SetPreferableBackend(backend); err != nil {
		log.WithError(err).Warnf("Failed to set DNN backend %q, continuing with default", cfg.Backend)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		log.WithError(err).Warnf("Failed to set DNN target %q, continuing with default", cfg.Target)
	}

	log.Infof("Detection model loaded: %s (backend=%s, target=%s)", cfg.ModelPath, cfg.Backend, cfg.Target)
	return &Detector{
		net:       net,
		modelPath: cfg.ModelPath,
		modelName: cfg.ModelName,
	}, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

// Predict runs inference on the image at imagePath and returns raw
// detections above the confidence threshold, after non-maximum suppression.
func (d *Detector) Predict(imagePath string, confidence float64, hint *detection.SizeHint) (*detection.PredictResult, error) {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image %s", imagePath)
	}
	defer img.Close()

	frameWidth := img.Cols()
	frameHeight := img.Rows()

	inputWidth, inputHeight := defaultInputSize, defaultInputSize
	if hint != nil && hint.Rect && hint.Width > 0 && hint.Height > 0 {
		inputWidth = roundToStride(hint.Width)
		inputHeight = roundToStride(hint.Height)
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(inputWidth, inputHeight),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	detections, err := parseYOLOOutput(&output, float32(confidence),
		frameWidth, frameHeight, inputWidth, inputHeight)
	if err != nil {
		return nil, err
	}

	return &detection.PredictResult{
		Detections:  detections,
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
	}, nil
}

// parseYOLOOutput decodes the [1, 4+classes, candidates] output tensor:
// 4 box values (cx, cy, w, h in input-space pixels) followed by one score
// per class for each candidate column.
func parseYOLOOutput(output *gocv.Mat, confidence float32, frameWidth, frameHeight, inputWidth, inputHeight int) ([]detection.Detection, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	attrs := sizes[1]
	candidates := sizes[2]
	if attrs < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access model output: %w", err)
	}

	xFactor := float32(frameWidth) / float32(inputWidth)
	yFactor := float32(frameHeight) / float32(inputHeight)

	var rects []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < candidates; i++ {
		bestScore := float32(0)
		bestClass := -1
		for class := 0; class < attrs-4; class++ {
			score := data[(4+class)*candidates+i]
			if score > bestScore {
				bestScore = score
				bestClass = class
			}
		}
		if bestScore < confidence {
			continue
		}

		cx := data[0*candidates+i]
		cy := data[1*candidates+i]
		w := data[2*candidates+i]
		h := data[3*candidates+i]

		x1 := int((cx - w/2) * xFactor)
		y1 := int((cy - h/2) * yFactor)
		x2 := int((cx + w/2) * xFactor)
		y2 := int((cy + h/2) * yFactor)

		rects = append(rects, image.Rect(x1, y1, x2, y2))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	if len(rects) == 0 {
		return []detection.Detection{}, nil
	}

	keep := gocv.NMSBoxes(rects, scores, confidence, nmsThreshold)
	detections := make([]detection.Detection, 0, len(keep))
	for _, idx := range keep {
		rect := rects[idx]
		detections = append(detections, detection.Detection{
			ClassID:    classIDs[idx],
			Confidence: float64(scores[idx]),
			Box: detection.Box{
				X1: rect.Min.X,
				Y1: rect.Min.Y,
				X2: rect.Max.X,
				Y2: rect.Max.Y,
			},
		})
	}
	return detections, nil
}

// resolveBackendTarget maps the config strings onto gocv constants.
func resolveBackendTarget(backend, target string) (gocv.NetBackendType, gocv.NetTargetType) {
	var b gocv.NetBackendType
	switch backend {
	case "cuda":
		b = gocv.NetBackendCUDA
	case "opencl":
		// OpenCL runs through the OpenCV backend with an FP32 target.
		b = gocv.NetBackendOpenCV
	default:
		b = gocv.NetBackendDefault
	}

	var t gocv.NetTargetType
	switch target {
	case "cuda":
		t = gocv.NetTargetCUDA
	case "opencl":
		t = gocv.NetTargetFP32
	default:
		t = gocv.NetTargetCPU
	}
	return b, t
}

// roundToStride rounds a dimension to the nearest multiple of the network
// stride, minimum one stride.
func roundToStride(v int) int {
	rounded := (v + inputStride/2) / inputStride * inputStride
	if rounded < inputStride {
		return inputStride
	}
	return rounded
}
