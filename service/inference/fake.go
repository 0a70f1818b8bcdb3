package inference

import (
	"image"
	"sync/atomic"

	"github.com/khaledhikmat/aicam-go/model"
)

type fakeService struct {
	size  image.Point
	calls atomic.Uint64
}

// NewFake returns a deterministic detector. Every call reports one object
// drifting across the input, a near-duplicate of it and a low-score box.
func NewFake(size int) IService {
	return &fakeService{
		size: image.Pt(size, size),
	}
}

func (svc *fakeService) Name() string {
	return "fake"
}

func (svc *fakeService) InputSize() image.Point {
	return svc.size
}

func (svc *fakeService) Detect(img image.Image) ([]model.Detection, error) {
	n := svc.calls.Add(1)

	b := img.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())
	side := w / 4

	// The box moves one eighth of the free width per call and wraps
	x := float64(n%8) * (w - side) / 8
	y := (h - side) / 2

	box := model.BBox{XMin: x, YMin: y, XMax: x + side, YMax: y + side}
	near := model.BBox{XMin: x + 4, YMin: y + 3, XMax: x + side + 4, YMax: y + side + 3}
	return []model.Detection{
		{ClassID: 0, Score: 0.9, BBox: box},
		{ClassID: 0, Score: 0.8, BBox: near},
		{ClassID: 1, Score: 0.2, BBox: model.BBox{XMin: 0, YMin: 0, XMax: side, YMax: side}},
	}, nil
}

func (svc *fakeService) Close() error {
	return nil
}
