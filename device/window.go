package device

import (
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// Window shows frames in a native window, scaled up by an integer factor.
type Window struct {
	window *gocv.Window
	scale  int
	scaled gocv.Mat
}

func NewWindow(title string, scale int) *Window {
	if scale < 1 {
		scale = 1
	}
	return &Window{
		window: gocv.NewWindow(title),
		scale:  scale,
		scaled: gocv.NewMat(),
	}
}

func (w *Window) Render(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return xerrors.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	// ImageToMatRGB yields BGR order, which is what IMShow expects
	show := mat
	if w.scale > 1 {
		gocv.Resize(mat, &w.scaled, image.Pt(mat.Cols()*w.scale, mat.Rows()*w.scale), 0, 0, gocv.InterpolationNearestNeighbor)
		show = w.scaled
	}

	w.window.IMShow(show)
	w.window.WaitKey(1)
	return nil
}

func (w *Window) Close() error {
	w.scaled.Close()
	return w.window.Close()
}
