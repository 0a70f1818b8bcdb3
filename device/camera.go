package device

import (
	"context"
	"image"
	"image/draw"
	"log/slog"

	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

var ErrEmptyFrame = xerrors.New("camera returned an empty frame")

// Camera reads frames from a local device index or a stream URL.
type Camera struct {
	webcam *gocv.VideoCapture
	img    gocv.Mat
	size   image.Point
}

func OpenCamera(params config.CaptureParameters) (*Camera, error) {
	webcam, err := gocv.OpenVideoCapture(params.Device)
	if err != nil {
		return nil, xerrors.Errorf("opening capture device %s: %w", params.Device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, xerrors.Errorf("capture device %s did not open", params.Device)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(params.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(params.Height))

	lgr.Logger.Info("camera opened",
		slog.String("device", params.Device),
		slog.Int("width", params.Width),
		slog.Int("height", params.Height),
		slog.String("openCV", gocv.Version()),
	)

	return &Camera{
		webcam: webcam,
		img:    gocv.NewMat(),
		size:   image.Pt(params.Width, params.Height),
	}, nil
}

// Capture blocks until the device delivers the next frame.
func (c *Camera) Capture(canxCtx context.Context) (*image.RGBA, error) {
	if err := canxCtx.Err(); err != nil {
		return nil, err
	}

	if ok := c.webcam.Read(&c.img); !ok || c.img.Empty() {
		return nil, ErrEmptyFrame
	}

	// Some drivers ignore the requested size
	if c.img.Cols() != c.size.X || c.img.Rows() != c.size.Y {
		gocv.Resize(c.img, &c.img, c.size, 0, 0, gocv.InterpolationDefault)
	}
	return frameFromMat(c.img)
}

func (c *Camera) Close() error {
	c.img.Close()
	return c.webcam.Close()
}

// frameFromMat converts a BGR capture Mat. ToImage does the BGR -> RGBA
// swap itself for 3-channel Mats.
func frameFromMat(mat gocv.Mat) (*image.RGBA, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, xerrors.Errorf("converting frame: %w", err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
