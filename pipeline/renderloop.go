package pipeline

import (
	"context"
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/codec"
	"github.com/khaledhikmat/aicam-go/service/lgr"
)

const captureRetryDelay = 50 * time.Millisecond

// RenderLoop drives one iteration per captured frame: store the frame, poll
// the inference worker, overlay the latest detections and telemetry, show the
// frame and hand it to the sender when a viewer is connected.
type RenderLoop struct {
	capturer    Capturer
	displayer   Displayer
	worker      *InferenceWorker
	codec       codec.IService
	sender      FrameSender
	labels      Labels
	rotate180   bool
	errorStream chan interface{}

	slot      FrameSlot
	seq       uint64
	lastFrame time.Time
	fps       float64
	start     time.Time

	mu     sync.Mutex
	frames int
	errors int
	sent   int
}

func NewRenderLoop(capturer Capturer, displayer Displayer, worker *InferenceWorker, codecSvc codec.IService, sender FrameSender, labels Labels, rotate180 bool, errorStream chan interface{}) *RenderLoop {
	return &RenderLoop{
		capturer:    capturer,
		displayer:   displayer,
		worker:      worker,
		codec:       codecSvc,
		sender:      sender,
		labels:      labels,
		rotate180:   rotate180,
		errorStream: errorStream,
		start:       time.Now(),
	}
}

// Slot exposes the frame cell shared with the inference worker.
func (l *RenderLoop) Slot() *FrameSlot {
	return &l.slot
}

// Run iterates until the context is cancelled. The current iteration always
// completes before Run returns.
func (l *RenderLoop) Run(canxCtx context.Context) error {
	lgr.Logger.Info("render loop starting",
		slog.Bool("rotate180", l.rotate180),
	)

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("render loop context cancelled")
			return nil
		default:
			if _, err := l.Step(canxCtx); err != nil {
				if canxCtx.Err() != nil {
					continue
				}
				time.Sleep(captureRetryDelay)
			}
		}
	}
}

// Step runs one iteration and returns the detection set drawn on the frame.
// Only capture failures are returned; display, encode and send failures are
// reported on the error stream and the iteration carries on.
func (l *RenderLoop) Step(canxCtx context.Context) (*model.DetectionSet, error) {
	img, err := l.capturer.Capture(canxCtx)
	if err != nil {
		if canxCtx.Err() == nil {
			l.report("render_capture", err, "capture failed")
		}
		return nil, err
	}

	l.seq++
	now := time.Now()
	l.slot.Capture(&FrameData{Image: img, Seq: l.seq, Timestamp: now})
	l.worker.TryStart(&l.slot)

	set := l.worker.Latest()

	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)
	DrawDetections(canvas, set, l.labels)
	DrawTelemetry(canvas, l.fps, set)

	out := canvas
	if l.rotate180 {
		out = transform.FlipH(transform.FlipV(canvas))
	}

	if err := l.displayer.Render(out); err != nil {
		l.report("render_display", err, "display failed")
	}

	if l.sender != nil && l.sender.HasTarget() {
		l.send(out)
	}

	if !l.lastFrame.IsZero() {
		l.fps = frameRate(now.Sub(l.lastFrame))
	}
	l.lastFrame = now

	l.mu.Lock()
	l.frames++
	l.mu.Unlock()
	return set, nil
}

func (l *RenderLoop) send(img image.Image) {
	payload, err := l.codec.Encode(img)
	if err != nil {
		l.report("render_encode", err, "encode failed")
		return
	}

	if err := l.sender.Send(payload); err != nil {
		l.report("render_send", err, "send failed, stream target cleared")
		return
	}

	l.mu.Lock()
	l.sent++
	l.mu.Unlock()
}

func (l *RenderLoop) report(proc string, err error, msg string) {
	err = lgr.WithTrace(err)

	l.mu.Lock()
	l.errors++
	l.mu.Unlock()

	lgr.Logger.Warn(msg, slog.Any("error", err))
	if l.errorStream == nil {
		return
	}
	select {
	case l.errorStream <- model.GenError(proc, err, map[string]interface{}{"seq": l.seq}, msg):
	default:
	}
}

func (l *RenderLoop) Stats() model.RenderStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	uptime := time.Since(l.start)
	var fps float64
	if uptime > 0 {
		fps = float64(l.frames) / uptime.Seconds()
	}
	return model.RenderStats{
		Name:   "render",
		Frames: l.frames,
		Errors: l.errors,
		FPS:    fps,
		Sent:   l.sent,
		Uptime: int64(uptime.Seconds()),
	}
}
