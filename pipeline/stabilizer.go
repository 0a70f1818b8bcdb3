package pipeline

import (
	"math"

	"github.com/khaledhikmat/aicam-go/model"
)

const (
	DefaultMinScore      float32 = 0.4
	DefaultDedupDistance float64 = 15
)

// Stabilizer drops low-score detections and collapses same-class boxes whose
// centers sit within Distance pixels of an already kept one.
type Stabilizer struct {
	MinScore float32
	Distance float64
}

func NewStabilizer(minScore float32, distance float64) Stabilizer {
	return Stabilizer{
		MinScore: minScore,
		Distance: distance,
	}
}

// Stabilize is greedy and order dependent: the first detection seen in a
// cluster is the one kept.
func (s Stabilizer) Stabilize(raw []model.Detection) []model.Detection {
	kept := make([]model.Detection, 0, len(raw))
	centers := map[int][][2]float64{}

	for _, d := range raw {
		if d.Score < s.MinScore {
			continue
		}

		cx, cy := d.BBox.Center()
		duplicate := false
		for _, c := range centers[d.ClassID] {
			if math.Hypot(cx-c[0], cy-c[1]) <= s.Distance {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		centers[d.ClassID] = append(centers[d.ClassID], [2]float64{cx, cy})
		kept = append(kept, d)
	}
	return kept
}
