package mode

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/khaledhikmat/aicam-go/device"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/pipeline"
	"github.com/khaledhikmat/aicam-go/service/codec"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"github.com/khaledhikmat/aicam-go/transport"
	"golang.org/x/xerrors"
)

// Receiver reassembles streamed frames and shows them until the context is
// cancelled.
func Receiver(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	receiverParams := svcs.CfgSvc.GetReceiverParameters()
	displayParams := svcs.CfgSvc.GetDisplayParameters()

	errorStream := make(chan interface{}, 64)

	conn, err := net.ListenPacket("udp", receiverParams.ListenAddress)
	if err != nil {
		return xerrors.Errorf("listening on %s: %w", receiverParams.ListenAddress, err)
	}
	defer conn.Close()

	var display pipeline.Displayer = pipeline.NopDisplay{}
	if displayParams.Enabled {
		display = device.NewWindow(displayParams.Title, 1)
	}
	defer display.Close()

	decoder := codec.NewJPEG(0)
	scale := max(displayParams.Scale, 1)
	var decodeErrors atomic.Int64

	consume := func(payload []byte) {
		img, err := decoder.Decode(payload)
		if err != nil {
			decodeErrors.Add(1)
			lgr.Logger.Debug("discarding undecodable frame",
				slog.Int("size", len(payload)),
				slog.Any("error", err),
			)
			return
		}

		if scale > 1 {
			b := img.Bounds()
			img = transform.Resize(img, b.Dx()*scale, b.Dy()*scale, transform.NearestNeighbor)
		}

		if err := display.Render(img); err != nil {
			select {
			case errorStream <- model.GenError("receiver_display", err, nil, "display failed"):
			default:
			}
		}
	}

	receiver := transport.NewReceiver(
		time.Duration(receiverParams.ReassemblyTTL)*time.Millisecond,
		receiverParams.MaxPendingFrames,
		consume)

	runDone := make(chan error, 1)
	go func() {
		runDone <- receiver.Run(canxCtx, conn)
	}()

	lgr.Logger.Info("receiver mode listening",
		slog.String("address", conn.LocalAddr().String()),
		slog.Int("scale", scale),
	)

	collectStats := func() {
		procStats(svcs.DataSvc, receiver.Stats())
		lgr.Logger.Debug("receiver decode errors", slog.Int64("count", decodeErrors.Load()))
	}

	ticker := time.NewTicker(time.Duration(svcs.CfgSvc.GetStatsPeriodicTimeout()) * time.Second)
	defer ticker.Stop()

	var runErr error
	running := true
	for running {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"receiver mode context cancelled",
			)
			runErr = <-runDone
			running = false

		case runErr = <-runDone:
			running = false

		case <-ticker.C:
			collectStats()

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	collectStats()
	drain(canxCtx, svcs, errorStream, "receiver mode")
	return runErr
}

// drain keeps persisting late errors until the shutdown period expires. It
// returns immediately when the processor stopped on its own.
func drain(canxCtx context.Context, svcs pipeline.ServicesFactory, errorStream chan interface{}, name string) {
	if canxCtx.Err() == nil {
		return
	}

	lgr.Logger.Info(
		name + " is waiting for all go routines to exit",
	)

	period := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				name+" shutdown waiting period expired. Exiting now",
				slog.Duration("period", period),
			)
			return

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}
