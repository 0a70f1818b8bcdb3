package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
)

type stubDetector struct {
	size      image.Point
	gate      chan struct{}
	dets      []model.Detection
	err       error
	panicWith interface{}

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	lastInput atomic.Pointer[image.Rectangle]
}

func (d *stubDetector) Name() string           { return "stub" }
func (d *stubDetector) InputSize() image.Point { return d.size }
func (d *stubDetector) Close() error           { return nil }

func (d *stubDetector) Detect(img image.Image) ([]model.Detection, error) {
	d.calls.Add(1)
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxActive.Load()
		if n <= m || d.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	b := img.Bounds()
	d.lastInput.Store(&b)

	if d.gate != nil {
		<-d.gate
	}
	if d.panicWith != nil {
		panic(d.panicWith)
	}
	return d.dets, d.err
}

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

type constCapturer struct {
	img   *image.RGBA
	calls int
}

func (c *constCapturer) Capture(_ context.Context) (*image.RGBA, error) {
	c.calls++
	return c.img, nil
}

func (c *constCapturer) Close() error { return nil }

type recordingDisplay struct {
	mu     sync.Mutex
	frames []image.Image
}

func (d *recordingDisplay) Render(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, img)
	return nil
}

func (d *recordingDisplay) Close() error { return nil }

type recordingSender struct {
	target   bool
	payloads [][]byte
	err      error
}

func (s *recordingSender) HasTarget() bool { return s.target }

func (s *recordingSender) Send(payload []byte) error {
	if s.err != nil {
		s.target = false
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func waitIdle(t *testing.T, w *InferenceWorker) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inference pass did not finish")
	}
}
