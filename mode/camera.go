package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/aicam-go/device"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/pipeline"
	"github.com/khaledhikmat/aicam-go/service/codec"
	"github.com/khaledhikmat/aicam-go/service/inference"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"github.com/khaledhikmat/aicam-go/session"
	"github.com/khaledhikmat/aicam-go/transport"
)

// Camera captures, detects, renders and streams until the context is cancelled.
func Camera(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	captureParams := svcs.CfgSvc.GetCaptureParameters()
	detectorParams := svcs.CfgSvc.GetDetectorParameters()
	streamParams := svcs.CfgSvc.GetStreamParameters()
	sessionParams := svcs.CfgSvc.GetSessionParameters()
	displayParams := svcs.CfgSvc.GetDisplayParameters()

	// Create an error stream. Producers never block on it.
	errorStream := make(chan interface{}, 64)

	// Capture source
	var capturer pipeline.Capturer
	if captureParams.Type == "random" {
		capturer = pipeline.NewRandomSource(captureParams.Width, captureParams.Height, 33*time.Millisecond)
	} else {
		cam, err := device.OpenCamera(captureParams)
		if err != nil {
			return err
		}
		capturer = cam
	}
	defer capturer.Close()

	labels := pipeline.Labels{}
	if detectorParams.LabelsPath != "" {
		l, err := pipeline.LoadLabels(detectorParams.LabelsPath)
		if err != nil {
			lgr.Logger.Warn("labels unavailable, showing class ids",
				slog.String("path", detectorParams.LabelsPath),
				slog.Any("error", err),
			)
		} else {
			labels = l
		}
	}

	// Detector: accelerated backend first, then CPU
	factories := device.Factories(detectorParams)
	if detectorParams.Type == "fake" {
		factories = []inference.Factory{{
			Name: "fake",
			New: func() (inference.IService, error) {
				return inference.NewFake(detectorParams.InputSize), nil
			},
		}}
	}
	detector, err := inference.Select(factories...)
	if err != nil {
		return err
	}
	defer detector.Close()

	worker := pipeline.NewInferenceWorker(detector,
		pipeline.NewStabilizer(detectorParams.ConfidenceThreshold, detectorParams.DedupDistance),
		errorStream)

	var detectionLog *pipeline.DetectionLog
	if detectorParams.DetectionsLog != "" {
		detectionLog = pipeline.NewDetectionLog(detectorParams.DetectionsLog, labels)
		defer detectionLog.Close()
	}
	worker.OnPublish(func(set *model.DetectionSet) {
		svcs.EmitterSvc.Emit(set)
		if detectionLog != nil {
			detectionLog.Log(set)
		}
	})

	// Streaming and its control channel
	sender := transport.NewSender(streamParams.ChunkSize)
	defer sender.Close()

	channel := session.NewChannel(sessionParams, errorStream)
	channel.AddHandler(session.NewStreamingHandler(sender, channel, streamParams.DefaultPort))
	if _, err := channel.Listen(canxCtx, sessionParams.ListenAddress); err != nil {
		return err
	}
	defer channel.Close()

	var display pipeline.Displayer = pipeline.NopDisplay{}
	if displayParams.Enabled {
		display = device.NewWindow(displayParams.Title, displayParams.Scale)
	}
	defer display.Close()

	loop := pipeline.NewRenderLoop(capturer,
		display,
		worker,
		codec.NewJPEG(streamParams.JPEGQuality),
		sender,
		labels,
		captureParams.Rotate180,
		errorStream)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(canxCtx)
	}()

	lgr.Logger.Info("camera mode running",
		slog.String("capture", captureParams.Type),
		slog.String("detector", detector.Name()),
		slog.String("session", sessionParams.ListenAddress),
	)

	collectStats := func() {
		procStats(svcs.DataSvc, loop.Stats())
		procStats(svcs.DataSvc, worker.Stats())
		procStats(svcs.DataSvc, sender.Stats())
		procStats(svcs.DataSvc, channel.Stats())
		lgr.Logger.Debug("emitter stats",
			slog.Any("stats", svcs.EmitterSvc.Stats()),
			slog.Uint64("frameOverwrites", loop.Slot().Overwrites()),
		)
	}

	ticker := time.NewTicker(time.Duration(svcs.CfgSvc.GetStatsPeriodicTimeout()) * time.Second)
	defer ticker.Stop()

	var loopErr error
	loopRunning := true

	// Wait for cancellation, render loop exit, stats or errors
	for loopRunning {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"camera mode context cancelled",
			)
			loopErr = <-loopDone
			loopRunning = false

		case loopErr = <-loopDone:
			loopRunning = false

		case <-ticker.C:
			collectStats()

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// The render loop has returned, join the in-flight inference pass
	worker.Wait()
	_ = channel.Close()
	_ = sender.Close()
	collectStats()

	drain(canxCtx, svcs, errorStream, "camera mode")
	return loopErr
}
