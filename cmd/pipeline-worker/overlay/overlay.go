package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gridlens/inspector/cmd/pipeline-worker/detector"
)

// Renderer draws detections onto a source image and returns encoded
// image bytes. The pipeline treats it as a black box.
type Renderer interface {
	Render(src io.Reader, detections []detector.Detection) ([]byte, string, error)
}

// BoxRenderer draws plain bounding-box rectangles and encodes JPEG
type BoxRenderer struct {
	LineWidth int
	Quality   int
}

// NewBoxRenderer creates a renderer with default stroke and quality
func NewBoxRenderer() *BoxRenderer {
	return &BoxRenderer{LineWidth: 3, Quality: 92}
}

var boxColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}

// Render decodes the source image, draws one rectangle per detection
// from its normalized box, and returns JPEG bytes with the content type.
func (r *BoxRenderer) Render(src io.Reader, detections []detector.Detection) ([]byte, string, error) {
	decoded, _, err := image.Decode(src)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := decoded.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, decoded, bounds.Min, draw.Src)

	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	for _, det := range detections {
		x1 := bounds.Min.X + int(det.Box[0]*w)
		y1 := bounds.Min.Y + int(det.Box[1]*h)
		x2 := bounds.Min.X + int((det.Box[0]+det.Box[2])*w)
		y2 := bounds.Min.Y + int((det.Box[1]+det.Box[3])*h)
		r.drawRect(canvas, x1, y1, x2, y2)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: r.Quality}); err != nil {
		return nil, "", fmt.Errorf("encode overlay: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}

func (r *BoxRenderer) drawRect(img *image.RGBA, x1, y1, x2, y2 int) {
	for t := 0; t < r.LineWidth; t++ {
		for x := x1; x <= x2; x++ {
			img.Set(x, y1+t, boxColor)
			img.Set(x, y2-t, boxColor)
		}
		for y := y1; y <= y2; y++ {
			img.Set(x1+t, y, boxColor)
			img.Set(x2-t, y, boxColor)
		}
	}
}
