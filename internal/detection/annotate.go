package detection

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
)

const annotationThickness = 3

var annotationColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}

// Annotate renders the person boxes and the ROI outline onto a copy of the
// captured JPEG and returns it as PNG bytes. A nil roi draws boxes only.
func Annotate(imagePath string, boxes []Box, roi Polygon) ([]byte, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer file.Close()

	src, err := jpeg.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture file: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, box := range boxes {
		drawRect(canvas, box)
	}
	if len(roi) >= 2 {
		for i := range roi {
			next := roi[(i+1)%len(roi)]
			drawLine(canvas, roi[i].X, roi[i].Y, next.X, next.Y)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRect(img *image.RGBA, box Box) {
	drawLine(img, box.X1, box.Y1, box.X2, box.Y1)
	drawLine(img, box.X2, box.Y1, box.X2, box.Y2)
	drawLine(img, box.X2, box.Y2, box.X1, box.Y2)
	drawLine(img, box.X1, box.Y2, box.X1, box.Y1)
}

// drawLine draws a straight segment by stepping along its longer axis and
// stamping a small square at each step for the stroke width.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int) {
	dx := x2 - x1
	dy := y2 - y1
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		stamp(img, x1, y1)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x1 + dx*i/steps
		y := y1 + dy*i/steps
		stamp(img, x, y)
	}
}

func stamp(img *image.RGBA, x, y int) {
	half := annotationThickness / 2
	bounds := img.Bounds()
	for ox := -half; ox <= half; ox++ {
		for oy := -half; oy <= half; oy++ {
			px, py := x+ox, y+oy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.SetRGBA(px, py, annotationColor)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
