package pipeline

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/lgr"
	"github.com/natefinch/lumberjack"
)

type loggedDetection struct {
	Label string     `json:"label"`
	Score float32    `json:"score"`
	BBox  model.BBox `json:"bbox"`
}

// DetectionLog appends every non-empty detection set as one JSON line to a
// rotating file.
type DetectionLog struct {
	out    *lumberjack.Logger
	labels Labels
}

func NewDetectionLog(filename string, labels Labels) *DetectionLog {
	return &DetectionLog{
		out: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		},
		labels: labels,
	}
}

func (l *DetectionLog) Log(set *model.DetectionSet) {
	if set == nil || len(set.Detections) == 0 {
		return
	}

	detections := make([]loggedDetection, len(set.Detections))
	for i, d := range set.Detections {
		detections[i] = loggedDetection{
			Label: l.labels.Name(d.ClassID),
			Score: d.Score,
			BBox:  d.BBox,
		}
	}

	entry := map[string]interface{}{
		"time":       set.Timestamp.Format(time.RFC3339Nano),
		"seq":        set.Seq,
		"frameSeq":   set.FrameSeq,
		"latencyMs":  float64(set.InferenceLatency.Microseconds()) / 1000,
		"detections": detections,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("marshaling detections", slog.Any("error", err))
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Error("writing detections log", slog.Any("error", err))
	}
}

func (l *DetectionLog) Close() error {
	return l.out.Close()
}
