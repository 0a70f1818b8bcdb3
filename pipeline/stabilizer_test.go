package pipeline

import (
	"testing"

	"github.com/khaledhikmat/aicam-go/model"
)

// box returns a 20x20 box centered on (cx, cy)
func box(cx, cy float64) model.BBox {
	return model.BBox{XMin: cx - 10, YMin: cy - 10, XMax: cx + 10, YMax: cy + 10}
}

func TestStabilize(t *testing.T) {
	tests := []struct {
		name string
		raw  []model.Detection
		want []float32 // scores of kept detections, in order
	}{
		{
			name: "within distance keeps first",
			raw: []model.Detection{
				{ClassID: 1, Score: 0.9, BBox: box(100, 100)},
				{ClassID: 1, Score: 0.8, BBox: box(109, 112)}, // 15 away
			},
			want: []float32{0.9},
		},
		{
			name: "beyond distance keeps both",
			raw: []model.Detection{
				{ClassID: 1, Score: 0.9, BBox: box(100, 100)},
				{ClassID: 1, Score: 0.8, BBox: box(116, 100)},
			},
			want: []float32{0.9, 0.8},
		},
		{
			name: "different classes keep both",
			raw: []model.Detection{
				{ClassID: 1, Score: 0.9, BBox: box(100, 100)},
				{ClassID: 2, Score: 0.8, BBox: box(100, 100)},
			},
			want: []float32{0.9, 0.8},
		},
		{
			name: "low scores dropped",
			raw: []model.Detection{
				{ClassID: 1, Score: 0.39, BBox: box(100, 100)},
				{ClassID: 1, Score: 0.4, BBox: box(105, 100)},
			},
			want: []float32{0.4},
		},
		{
			name: "dropped detection does not suppress others",
			raw: []model.Detection{
				{ClassID: 1, Score: 0.1, BBox: box(100, 100)},
				{ClassID: 1, Score: 0.7, BBox: box(101, 101)},
			},
			want: []float32{0.7},
		},
		{
			name: "empty input",
			raw:  nil,
			want: nil,
		},
	}

	s := NewStabilizer(DefaultMinScore, DefaultDedupDistance)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Stabilize(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("kept %d detections, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Score != tt.want[i] {
					t.Errorf("detection %d score: got %v, want %v", i, got[i].Score, tt.want[i])
				}
			}
		})
	}
}

func TestStabilizeOrderDependent(t *testing.T) {
	// B is within range of both A and C, A and C are far apart
	a := model.Detection{ClassID: 0, Score: 0.9, BBox: box(100, 100)}
	b := model.Detection{ClassID: 0, Score: 0.8, BBox: box(112, 100)}
	c := model.Detection{ClassID: 0, Score: 0.7, BBox: box(124, 100)}

	s := NewStabilizer(DefaultMinScore, DefaultDedupDistance)

	if got := s.Stabilize([]model.Detection{a, b, c}); len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("order a,b,c: got %+v", got)
	}
	if got := s.Stabilize([]model.Detection{b, a, c}); len(got) != 1 || got[0] != b {
		t.Errorf("order b,a,c: got %+v", got)
	}
}
