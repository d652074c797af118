package detection

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestJPEG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write test JPEG: %v", err)
	}
	return path
}

func TestAnnotateProducesPNGOfSameSize(t *testing.T) {
	path := writeTestJPEG(t, 120, 80)

	data, err := Annotate(path, []Box{{X1: 10, Y1: 10, X2: 40, Y2: 60}}, Polygon{{5, 5}, {115, 5}, {115, 75}, {5, 75}})
	if err != nil {
		t.Fatalf("Annotate() returned error: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Annotate() output is not valid PNG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 120 || bounds.Dy() != 80 {
		t.Errorf("annotated image is %dx%d, want 120x80", bounds.Dx(), bounds.Dy())
	}
}

func TestAnnotateDrawsBoxOutline(t *testing.T) {
	path := writeTestJPEG(t, 100, 100)

	data, err := Annotate(path, []Box{{X1: 20, Y1: 20, X2: 60, Y2: 60}}, nil)
	if err != nil {
		t.Fatalf("Annotate() returned error: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Annotate() output is not valid PNG: %v", err)
	}

	// A point on the top edge of the box must carry the overlay color.
	r, g, b, _ := decoded.At(40, 20).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("pixel on box edge = (%d, %d, %d), want yellow", r>>8, g>>8, b>>8)
	}
	// The box interior stays untouched.
	r, g, b, _ = decoded.At(40, 40).RGBA()
	if r>>8 == 255 && g>>8 == 255 && b>>8 == 0 {
		t.Error("box interior should not be filled")
	}
}

func TestAnnotateMissingFile(t *testing.T) {
	if _, err := Annotate(filepath.Join(t.TempDir(), "absent.jpg"), nil, nil); err == nil {
		t.Error("Annotate() on a missing file should fail")
	}
}

func TestAnnotateEmptyOverlays(t *testing.T) {
	path := writeTestJPEG(t, 50, 50)
	data, err := Annotate(path, nil, nil)
	if err != nil {
		t.Fatalf("Annotate() returned error: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Annotate() without overlays should still produce valid PNG: %v", err)
	}
}
