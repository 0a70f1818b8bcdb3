package emitter

import (
	"encoding/json"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/xerrors"
)

type event struct {
	Source     string            `json:"source" msgpack:"source"`
	Seq        uint64            `json:"seq" msgpack:"seq"`
	FrameSeq   uint64            `json:"frameSeq" msgpack:"frameSeq"`
	LatencyMs  float64           `json:"latencyMs" msgpack:"latencyMs"`
	Timestamp  int64             `json:"timestamp" msgpack:"timestamp"`
	Detections []model.Detection `json:"detections" msgpack:"detections"`
}

func newEvent(source string, set *model.DetectionSet) event {
	detections := set.Detections
	if detections == nil {
		detections = []model.Detection{}
	}
	return event{
		Source:     source,
		Seq:        set.Seq,
		FrameSeq:   set.FrameSeq,
		LatencyMs:  float64(set.InferenceLatency.Microseconds()) / 1000,
		Timestamp:  set.Timestamp.UnixMilli(),
		Detections: detections,
	}
}

func encode(format string, ev event) ([]byte, error) {
	switch format {
	case "msgpack":
		return msgpack.Marshal(ev)
	case "json", "":
		return json.Marshal(ev)
	default:
		return nil, xerrors.Errorf("unsupported emitter format %q", format)
	}
}
