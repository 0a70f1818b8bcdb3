package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/data"
	"github.com/khaledhikmat/aicam-go/service/emitter"
)

// FrameData is one captured frame. It is never modified once stored in a
// FrameSlot.
type FrameData struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
}

type Capturer interface {
	Capture(canxCtx context.Context) (*image.RGBA, error)
	Close() error
}

type Displayer interface {
	Render(img image.Image) error
	Close() error
}

// FrameSender streams an encoded frame to the current viewer, if any
type FrameSender interface {
	HasTarget() bool
	Send(payload []byte) error
}

type ServicesFactory struct {
	CfgSvc     config.IService
	DataSvc    data.IService
	EmitterSvc emitter.IService
}
