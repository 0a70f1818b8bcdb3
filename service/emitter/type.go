package emitter

import "github.com/khaledhikmat/aicam-go/model"

// IService publishes detection sets off the render path. Emit never blocks.
type IService interface {
	Emit(set *model.DetectionSet)
	Stats() Stats
	Close() error
}

type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}
