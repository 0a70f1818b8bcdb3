package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/pipeline"
	"github.com/khaledhikmat/aicam-go/service/data"
	"github.com/khaledhikmat/aicam-go/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procStats(datasvc data.IService, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.RenderStats:
		err = datasvc.NewRenderStats(stats)
	case model.InferenceStats:
		err = datasvc.NewInferenceStats(stats)
	case model.SenderStats:
		err = datasvc.NewSenderStats(stats)
	case model.ReceiverStats:
		err = datasvc.NewReceiverStats(stats)
	case model.SessionStats:
		err = datasvc.NewSessionStats(stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
		return
	}

	if err != nil {
		lgr.Logger.Error(
			"failed to store stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
