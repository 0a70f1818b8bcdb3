package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/aicam-go/mode"
	"github.com/khaledhikmat/aicam-go/pipeline"
	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/data"
	"github.com/khaledhikmat/aicam-go/service/emitter"
	"github.com/khaledhikmat/aicam-go/service/lgr"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"camera":   mode.Camera,
	"receiver": mode.Receiver,
}

// usage: aicam [camera|receiver] [config.yaml]
func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		if err := godotenv.Load(); err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	modeType := "camera"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		os.Exit(2)
	}

	// Config service: defaults, or a YAML file over the defaults
	cfgSvc := config.NewHardCoded()
	if len(args) > 1 {
		fileSvc, err := config.NewFile(args[1])
		if err != nil {
			lgr.Logger.Error("invalid configuration", slog.String("path", args[1]), slog.Any("error", err))
			os.Exit(2)
		}
		cfgSvc = fileSvc
	}

	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)

	// Emitter service
	emitterSvc := emitter.NewNoop()
	if params := cfgSvc.GetEmitterParameters(); params.Broker != "" {
		mqttSvc, err := emitter.NewMQTT(canxCtx, params)
		if err != nil {
			lgr.Logger.Warn("detection emitter disabled", slog.String("broker", params.Broker), slog.Any("error", err))
		} else {
			emitterSvc = mqttSvc
		}
	}
	defer emitterSvc.Close()

	svcs := pipeline.ServicesFactory{
		CfgSvc:     cfgSvc,
		DataSvc:    dataSvc,
		EmitterSvc: emitterSvc,
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	exitCode := 0

	// Wait for cancellation or mode proc
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"aicam context cancelled",
			slog.String("mode", modeType),
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Error(
				"mode processor exited",
				slog.String("mode", modeType),
				slog.Any("error", err),
			)
			exitCode = 1
		}
		canxFn()
		emitterSvc.Close()
		os.Exit(exitCode)
	}

	lgr.Logger.Info(
		"aicam is waiting for the mode processor to exit",
	)

	// The mode processor gets `waitOnShutdown` to finish its shutdown
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"aicam shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Error(
				"mode processor exited",
				slog.Any("error", err),
			)
		}
	}
}
