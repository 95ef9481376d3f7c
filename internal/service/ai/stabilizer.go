package ai

import (
	"math"
	"visionstream/internal/model"
)

// DefaultCellSize is the quantization step, in pixels, of the stabilizer grid.
const DefaultCellSize = 20

// DefaultAttributes is the secondary-attribute vocabulary used when none is configured.
var DefaultAttributes = []string{"Neutral", "Happy", "Sad", "Angry", "Fearful", "Surprised"}

// Stabilizer assigns a secondary attribute to a detection from its position
// alone, so that a near-stationary subject keeps the same attribute from frame
// to frame without any tracking state.
//
// Known limitation: two subjects whose centroids fall into the same cell get
// the same attribute.
type Stabilizer struct {
	cellSize   int
	vocabulary []string
}

// NewStabilizer creates a Stabilizer. Non-positive cell sizes and empty
// vocabularies fall back to the defaults.
func NewStabilizer(cellSize int, vocabulary []string) *Stabilizer {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	if len(vocabulary) == 0 {
		vocabulary = DefaultAttributes
	}
	return &Stabilizer{
		cellSize:   cellSize,
		vocabulary: append([]string(nil), vocabulary...),
	}
}

// Cell returns the grid cell containing the detection's centroid.
func (s *Stabilizer) Cell(det model.Detection) (int, int) {
	cx, cy := det.Box.Centroid()
	k := float64(s.cellSize)
	return int(math.Floor(cx / k)), int(math.Floor(cy / k))
}

// Stabilize returns the attribute for the detection's cell.
func (s *Stabilizer) Stabilize(det model.Detection) string {
	x, y := s.Cell(det)
	n := len(s.vocabulary)
	index := ((x+y)%n + n) % n
	return s.vocabulary[index]
}
