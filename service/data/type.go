package data

import "github.com/khaledhikmat/aicam-go/model"

type IService interface {
	NewError(err interface{}) error
	NewRenderStats(stats model.RenderStats) error
	NewInferenceStats(stats model.InferenceStats) error
	NewSenderStats(stats model.SenderStats) error
	NewReceiverStats(stats model.ReceiverStats) error
	NewSessionStats(stats model.SessionStats) error
}
