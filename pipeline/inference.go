package pipeline

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/inference"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"golang.org/x/xerrors"
)

const (
	workerIdle int32 = iota
	workerRunning
)

// InferenceWorker runs at most one detection pass at a time. The render loop
// polls it with TryStart and reads results with Latest; neither call blocks.
type InferenceWorker struct {
	detector    inference.IService
	stabilizer  Stabilizer
	errorStream chan interface{}
	onPublish   func(set *model.DetectionSet)

	state  atomic.Int32
	latest atomic.Pointer[model.DetectionSet]
	seq    atomic.Uint64
	wg     sync.WaitGroup

	mu             sync.Mutex
	passes         int
	failures       int
	skipped        int
	totalLatency   time.Duration
	lastDetections int
}

func NewInferenceWorker(detector inference.IService, stabilizer Stabilizer, errorStream chan interface{}) *InferenceWorker {
	return &InferenceWorker{
		detector:    detector,
		stabilizer:  stabilizer,
		errorStream: errorStream,
	}
}

// OnPublish registers a hook called with every published set. It runs on the
// worker goroutine and must not block. Set it before the first TryStart.
func (w *InferenceWorker) OnPublish(fn func(set *model.DetectionSet)) {
	w.onPublish = fn
}

// TryStart launches a pass over the slot's current frame unless one is
// already running. It reports whether a pass was launched.
func (w *InferenceWorker) TryStart(slot *FrameSlot) bool {
	if !w.state.CompareAndSwap(workerIdle, workerRunning) {
		w.mu.Lock()
		w.skipped++
		w.mu.Unlock()
		return false
	}

	w.wg.Add(1)
	go w.run(slot)
	return true
}

func (w *InferenceWorker) run(slot *FrameSlot) {
	defer w.wg.Done()
	defer w.state.Store(workerIdle)
	defer func() {
		if r := recover(); r != nil {
			w.fail(xerrors.Errorf("detector panic: %v", r))
		}
	}()

	frame := slot.Snapshot()
	if frame == nil || frame.Image == nil {
		return
	}

	start := time.Now()
	input, sx, sy := w.prepare(frame.Image)
	raw, err := w.detector.Detect(input)
	latency := time.Since(start)
	if err != nil {
		w.fail(err)
		return
	}

	scaled := make([]model.Detection, len(raw))
	for i, d := range raw {
		d.BBox = d.BBox.Scale(sx, sy)
		scaled[i] = d
	}

	set := &model.DetectionSet{
		Seq:              w.seq.Add(1),
		FrameSeq:         frame.Seq,
		Detections:       w.stabilizer.Stabilize(scaled),
		InferenceLatency: latency,
		Timestamp:        time.Now(),
	}
	w.latest.Store(set)

	w.mu.Lock()
	w.passes++
	w.totalLatency += latency
	w.lastDetections = len(set.Detections)
	w.mu.Unlock()

	if w.onPublish != nil {
		w.onPublish(set)
	}
}

// prepare resizes the frame to the detector input and returns the factors
// that map detector boxes back to frame pixels.
func (w *InferenceWorker) prepare(img *image.RGBA) (image.Image, float64, float64) {
	size := w.detector.InputSize()
	b := img.Bounds()
	if size.X <= 0 || size.Y <= 0 || (size.X == b.Dx() && size.Y == b.Dy()) {
		return img, 1, 1
	}

	resized := imaging.Resize(img, size.X, size.Y, imaging.Linear)
	return resized, float64(b.Dx()) / float64(size.X), float64(b.Dy()) / float64(size.Y)
}

func (w *InferenceWorker) fail(err error) {
	err = lgr.WithTrace(err)

	w.mu.Lock()
	w.failures++
	w.mu.Unlock()

	lgr.Logger.Warn("inference pass discarded",
		slog.String("backend", w.detector.Name()),
		slog.Any("error", err),
	)

	if w.errorStream == nil {
		return
	}
	select {
	case w.errorStream <- model.GenError("inference_worker", err, map[string]interface{}{
		"backend": w.detector.Name(),
	}, "inference pass failed"):
	default:
	}
}

// Latest returns the last published set or nil.
func (w *InferenceWorker) Latest() *model.DetectionSet {
	return w.latest.Load()
}

func (w *InferenceWorker) Running() bool {
	return w.state.Load() == workerRunning
}

// Wait blocks until an in-flight pass finishes.
func (w *InferenceWorker) Wait() {
	w.wg.Wait()
}

func (w *InferenceWorker) Stats() model.InferenceStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	var avg float64
	if w.passes > 0 {
		avg = float64(w.totalLatency.Microseconds()) / 1000 / float64(w.passes)
	}
	return model.InferenceStats{
		Name:           "inference",
		Backend:        w.detector.Name(),
		Passes:         w.passes,
		Failures:       w.failures,
		SkippedLaunch:  w.skipped,
		AvgLatency:     avg,
		LastDetections: w.lastDetections,
	}
}
