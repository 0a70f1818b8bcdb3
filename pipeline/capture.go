package pipeline

import (
	"context"
	"image"
	"math/rand"
	"time"
)

// RandomSource produces noise frames at a fixed interval. It stands in for a
// camera on machines without one.
type RandomSource struct {
	width    int
	height   int
	interval time.Duration
	rnd      *rand.Rand
}

func NewRandomSource(width, height int, interval time.Duration) *RandomSource {
	return &RandomSource{
		width:    width,
		height:   height,
		interval: interval,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (src *RandomSource) Capture(canxCtx context.Context) (*image.RGBA, error) {
	if src.interval > 0 {
		select {
		case <-canxCtx.Done():
			return nil, canxCtx.Err()
		case <-time.After(src.interval):
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, src.width, src.height))
	src.rnd.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func (src *RandomSource) Close() error {
	return nil
}

// NopDisplay discards frames (headless runs)
type NopDisplay struct{}

func (NopDisplay) Render(_ image.Image) error {
	return nil
}

func (NopDisplay) Close() error {
	return nil
}
