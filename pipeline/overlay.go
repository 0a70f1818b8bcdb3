package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var telemetryColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// ClassColor gives every class a stable, well separated hue.
func ClassColor(classID int) color.RGBA {
	hue := math.Mod(float64(classID)*47+60, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 1.0).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// DrawDetections outlines every detection and writes its label and score
// inside the box.
func DrawDetections(img *image.RGBA, set *model.DetectionSet, labels Labels) {
	if set == nil {
		return
	}

	for _, d := range set.Detections {
		c := ClassColor(d.ClassID)
		r := d.BBox.Rect()
		drawRect(img, r, c)
		drawText(img, r.Min.X+10, r.Min.Y+10, fmt.Sprintf("%s\n%.2f", labels.Name(d.ClassID), d.Score), c)
	}
}

// TelemetryText renders the frame rate and the last inference latency.
// The latency reads "--" until a pass has completed.
func TelemetryText(fps float64, set *model.DetectionSet) string {
	latency := "--"
	if set != nil {
		latency = fmt.Sprintf("%.2f ms", float64(set.InferenceLatency.Microseconds())/1000)
	}
	return fmt.Sprintf("%02d fps\n%s", int(fps), latency)
}

func DrawTelemetry(img *image.RGBA, fps float64, set *model.DetectionSet) {
	drawText(img, 10, 10, TelemetryText(fps, set), telemetryColor)
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// drawText writes multi-line text with its top-left corner at (x, y).
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}

	lineHeight := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+ascent+i*lineHeight)
		d.DrawString(line)
	}
}

// frameRate converts the duration of the previous iteration into frames per second.
func frameRate(elapsed time.Duration) float64 {
	if elapsed < time.Microsecond {
		elapsed = time.Microsecond
	}
	return 1 / elapsed.Seconds()
}
