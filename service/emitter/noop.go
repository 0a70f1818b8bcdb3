package emitter

import "github.com/khaledhikmat/aicam-go/model"

type noopService struct{}

func NewNoop() IService {
	return noopService{}
}

func (noopService) Emit(_ *model.DetectionSet) {}

func (noopService) Stats() Stats {
	return Stats{}
}

func (noopService) Close() error {
	return nil
}
