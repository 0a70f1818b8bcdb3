package model

import (
	"fmt"
	"image"
	"math"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// BBox is a bounding box in frame pixel space
type BBox struct {
	XMin float64 `json:"xmin" msgpack:"xmin"`
	YMin float64 `json:"ymin" msgpack:"ymin"`
	XMax float64 `json:"xmax" msgpack:"xmax"`
	YMax float64 `json:"ymax" msgpack:"ymax"`
}

func (b BBox) Center() (float64, float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

func (b BBox) Scale(sx, sy float64) BBox {
	return BBox{
		XMin: b.XMin * sx,
		YMin: b.YMin * sy,
		XMax: b.XMax * sx,
		YMax: b.YMax * sy,
	}
}

func (b BBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.XMin)),
		int(math.Round(b.YMin)),
		int(math.Round(b.XMax)),
		int(math.Round(b.YMax)),
	)
}

type Detection struct {
	ClassID int     `json:"classId" msgpack:"classId"`
	Score   float32 `json:"score" msgpack:"score"`
	BBox    BBox    `json:"bbox" msgpack:"bbox"`
}

// DetectionSet is the outcome of one inference pass. It is published whole and
// never modified afterwards.
type DetectionSet struct {
	Seq              uint64        `json:"seq" msgpack:"seq"`
	FrameSeq         uint64        `json:"frameSeq" msgpack:"frameSeq"`
	Detections       []Detection   `json:"detections" msgpack:"detections"`
	InferenceLatency time.Duration `json:"inferenceLatency" msgpack:"inferenceLatency"`
	Timestamp        time.Time     `json:"timestamp" msgpack:"timestamp"`
}

type RenderStats struct {
	Name      string  `json:"name"`
	Frames    int     `json:"frames"`
	Errors    int     `json:"errors"`
	FPS       float64 `json:"fps"`
	Sent      int     `json:"sent"`
	Uptime    int64   `json:"uptime"`
	Timestamp int64   `json:"timestamp"`
}

type InferenceStats struct {
	Name           string  `json:"name"`
	Backend        string  `json:"backend"`
	Passes         int     `json:"passes"`
	Failures       int     `json:"failures"`
	SkippedLaunch  int     `json:"skippedLaunch"`
	AvgLatency     float64 `json:"avgLatency"`
	LastDetections int     `json:"lastDetections"`
	Timestamp      int64   `json:"timestamp"`
}

type SenderStats struct {
	Name      string `json:"name"`
	Target    string `json:"target"`
	Frames    int    `json:"frames"`
	Packets   int    `json:"packets"`
	Bytes     int64  `json:"bytes"`
	Errors    int    `json:"errors"`
	Timestamp int64  `json:"timestamp"`
}

type ReceiverStats struct {
	Name      string `json:"name"`
	Packets   int    `json:"packets"`
	Malformed int    `json:"malformed"`
	Frames    int    `json:"frames"`
	Evicted   int    `json:"evicted"`
	Pending   int    `json:"pending"`
	Timestamp int64  `json:"timestamp"`
}

type SessionStats struct {
	Name      string   `json:"name"`
	Active    int      `json:"active"`
	Sessions  []string `json:"sessions"`
	Joined    int      `json:"joined"`
	Left      int      `json:"left"`
	Commands  int      `json:"commands"`
	LogLines  int      `json:"logLines"`
	Timestamp int64    `json:"timestamp"`
}
