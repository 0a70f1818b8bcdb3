package inference

import (
	"image"

	"github.com/khaledhikmat/aicam-go/model"
)

// IService is a loaded detector. Detect receives an image already resized to
// InputSize and returns boxes in that image's pixel space.
type IService interface {
	Name() string
	InputSize() image.Point
	Detect(img image.Image) ([]model.Detection, error)
	Close() error
}

// Factory loads one detector backend.
type Factory struct {
	Name string
	New  func() (IService, error)
}
