package device

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/config"
	"github.com/khaledhikmat/aicam-go/service/inference"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type backend struct {
	name   string
	net    gocv.NetBackendType
	target gocv.NetTargetType
}

var (
	cudaBackend = backend{name: "cuda", net: gocv.NetBackendCUDA, target: gocv.NetTargetCUDA}
	cpuBackend  = backend{name: "cpu", net: gocv.NetBackendDefault, target: gocv.NetTargetCPU}
)

// DNNDetector runs a YOLOv5-style ONNX model through OpenCV's dnn module.
// Each output row is cx, cy, w, h, objectness, then one score per class.
type DNNDetector struct {
	mu        sync.Mutex
	name      string
	net       gocv.Net
	size      image.Point
	threshold float32
}

// Factories returns the accelerated backend first and the CPU one second.
func Factories(params config.DetectorParameters) []inference.Factory {
	return []inference.Factory{
		{
			Name: "dnn-" + cudaBackend.name,
			New: func() (inference.IService, error) {
				return newDNNDetector(params.AcceleratedModelPath, cudaBackend, params)
			},
		},
		{
			Name: "dnn-" + cpuBackend.name,
			New: func() (inference.IService, error) {
				return newDNNDetector(params.CPUModelPath, cpuBackend, params)
			},
		},
	}
}

func newDNNDetector(modelPath string, be backend, params config.DetectorParameters) (inference.IService, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, xerrors.Errorf("model %s: %w", modelPath, err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, xerrors.Errorf("error reading model %s", modelPath)
	}

	if err := net.SetPreferableBackend(be.net); err != nil {
		net.Close()
		return nil, xerrors.Errorf("setting %s backend: %w", be.name, err)
	}
	if err := net.SetPreferableTarget(be.target); err != nil {
		net.Close()
		return nil, xerrors.Errorf("setting %s target: %w", be.name, err)
	}

	d := &DNNDetector{
		name:      "dnn-" + be.name,
		net:       net,
		size:      image.Pt(params.InputSize, params.InputSize),
		threshold: params.ConfidenceThreshold,
	}

	// A backend that loads but cannot run only fails on the first forward pass
	if err := d.probe(); err != nil {
		net.Close()
		return nil, xerrors.Errorf("probing %s backend: %w", be.name, err)
	}

	lgr.Logger.Info("dnn detector loaded",
		slog.String("backend", d.name),
		slog.String("model", modelPath),
		slog.Int("inputSize", params.InputSize),
	)
	return d, nil
}

func (d *DNNDetector) probe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("forward pass panicked: %v", r)
		}
	}()

	blank := gocv.NewMatWithSize(d.size.Y, d.size.X, gocv.MatTypeCV8UC3)
	defer blank.Close()

	blob := gocv.BlobFromImage(blank, 1.0/255.0, d.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return xerrors.New("forward pass returned an empty output")
	}
	return nil
}

func (d *DNNDetector) Name() string {
	return d.name
}

func (d *DNNDetector) InputSize() image.Point {
	return d.size
}

func (d *DNNDetector) Detect(img image.Image) ([]model.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, xerrors.Errorf("converting input: %w", err)
	}
	defer mat.Close()

	// mat is BGR, swapRB gives the model RGB
	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, xerrors.Errorf("unexpected dnn output dims %v", dims)
	}

	reshaped := output.Reshape(1, dims[1])
	defer reshaped.Close()
	if reshaped.Empty() || reshaped.Rows() == 0 || reshaped.Cols() < 6 {
		return nil, xerrors.Errorf("unexpected dnn output shape %dx%d", reshaped.Rows(), reshaped.Cols())
	}

	detections := []model.Detection{}
	for i := 0; i < reshaped.Rows(); i++ {
		row := reshaped.RowRange(i, i+1)
		data, err := row.DataPtrFloat32()
		if err != nil || len(data) < 6 {
			row.Close()
			continue
		}
		if det, ok := d.extract(data); ok {
			detections = append(detections, det)
		}
		row.Close()
	}
	return detections, nil
}

// extract turns one output row into a detection in input pixel space.
func (d *DNNDetector) extract(data []float32) (model.Detection, bool) {
	objectConfidence := data[4]
	if objectConfidence < d.threshold {
		return model.Detection{}, false
	}

	classID := -1
	classConfidence := float32(0)
	for j, score := range data[5:] {
		if score > classConfidence {
			classConfidence = score
			classID = j
		}
	}

	score := objectConfidence * classConfidence
	if classID < 0 || score < d.threshold {
		return model.Detection{}, false
	}

	cx, cy, w, h := float64(data[0]), float64(data[1]), float64(data[2]), float64(data[3])
	// Some exports emit normalized coordinates
	if cx <= 1 && cy <= 1 && w <= 1 && h <= 1 {
		cx *= float64(d.size.X)
		w *= float64(d.size.X)
		cy *= float64(d.size.Y)
		h *= float64(d.size.Y)
	}

	return model.Detection{
		ClassID: classID,
		Score:   score,
		BBox: model.BBox{
			XMin: cx - w/2,
			YMin: cy - h/2,
			XMax: cx + w/2,
			YMax: cy + h/2,
		},
	}, true
}

func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
