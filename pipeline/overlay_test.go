package pipeline

import (
	"bufio"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
)

func TestClassColorStableAndDistinct(t *testing.T) {
	if ClassColor(3) != ClassColor(3) {
		t.Error("class color should be stable")
	}
	if ClassColor(0) == ClassColor(1) {
		t.Error("neighbouring classes should differ")
	}
	if ClassColor(5).A != 255 {
		t.Error("class color should be opaque")
	}
}

func TestDrawDetectionsOutlinesBox(t *testing.T) {
	img := solidFrame(100, 100, gray)
	set := &model.DetectionSet{Detections: []model.Detection{
		{ClassID: 2, Score: 0.8, BBox: model.BBox{XMin: 10, YMin: 20, XMax: 90, YMax: 80}},
	}}

	DrawDetections(img, set, Labels{2: "car"})

	c := ClassColor(2)
	for _, p := range []image.Point{{10, 50}, {89, 50}, {50, 20}, {50, 79}} {
		if img.RGBAAt(p.X, p.Y) != c {
			t.Errorf("edge pixel %v: got %v, want %v", p, img.RGBAAt(p.X, p.Y), c)
		}
	}
	if img.RGBAAt(50, 60) != gray {
		t.Errorf("box interior should be untouched, got %v", img.RGBAAt(50, 60))
	}
}

func TestDrawDetectionsClipsToFrame(t *testing.T) {
	img := solidFrame(20, 20, gray)
	set := &model.DetectionSet{Detections: []model.Detection{
		{ClassID: 0, Score: 0.9, BBox: model.BBox{XMin: -30, YMin: -30, XMax: 200, YMax: 200}},
	}}

	// Must not panic
	DrawDetections(img, set, nil)
	DrawDetections(img, nil, nil)
}

func TestDetectionLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.log")
	l := NewDetectionLog(path, Labels{0: "person"})

	l.Log(&model.DetectionSet{Seq: 1})
	l.Log(&model.DetectionSet{
		Seq:              2,
		FrameSeq:         9,
		InferenceLatency: 5 * time.Millisecond,
		Timestamp:        time.Now(),
		Detections:       []model.Detection{{ClassID: 0, Score: 0.9}},
	})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 1 {
		t.Fatalf("lines: got %d, want 1 (empty sets are skipped)", len(lines))
	}
	dets := lines[0]["detections"].([]interface{})
	if dets[0].(map[string]interface{})["label"] != "person" || lines[0]["latencyMs"].(float64) != 5 {
		t.Errorf("entry: got %v", lines[0])
	}
}
