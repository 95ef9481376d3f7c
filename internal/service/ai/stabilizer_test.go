package ai

import (
	"testing"
	"visionstream/internal/model"

	"github.com/stretchr/testify/assert"
)

func detectionAt(x1, y1, x2, y2 float64) model.Detection {
	return model.Detection{Box: model.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Label: "mask", Confidence: 0.9}
}

func TestStabilizer_SameCellSameAttribute(t *testing.T) {
	s := NewStabilizer(20, DefaultAttributes)

	// Centroids (50,50) and (59.9,41) both fall in cell (2,2).
	first := detectionAt(30, 30, 70, 70)
	second := detectionAt(40.8, 22, 79, 60)

	x1, y1 := s.Cell(first)
	x2, y2 := s.Cell(second)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
	assert.Equal(t, s.Stabilize(first), s.Stabilize(second))
}

func TestStabilizer_IndependentOfCallsAndInstances(t *testing.T) {
	det := detectionAt(100, 200, 140, 260)
	a := NewStabilizer(20, DefaultAttributes)
	b := NewStabilizer(20, DefaultAttributes)

	want := a.Stabilize(det)
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, a.Stabilize(det))
		assert.Equal(t, want, b.Stabilize(det))
	}
}

func TestStabilizer_SeedIsSumOfCells(t *testing.T) {
	s := NewStabilizer(20, DefaultAttributes)

	tests := []struct {
		name string
		det  model.Detection
		want string
	}{
		{"origin cell", detectionAt(0, 0, 10, 10), "Neutral"},
		{"cell (1,0)", detectionAt(20, 0, 30, 10), "Happy"},
		{"cell (0,2)", detectionAt(0, 40, 10, 50), "Sad"},
		{"cell (3,2)", detectionAt(60, 40, 70, 50), "Surprised"},
		{"wraps around", detectionAt(120, 0, 130, 10), "Neutral"},
		{"seed 7", detectionAt(100, 40, 110, 50), "Happy"},
		{"negative centroid", detectionAt(-30, 0, -20, 10), "Fearful"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Stabilize(tt.det))
		})
	}
}

func TestStabilizer_Defaults(t *testing.T) {
	s := NewStabilizer(0, nil)
	assert.Equal(t, DefaultCellSize, s.cellSize)
	assert.Equal(t, DefaultAttributes, s.vocabulary)
}

func TestStabilizer_CellBoundary(t *testing.T) {
	s := NewStabilizer(20, []string{"a", "b"})

	// Centroid x = 19.5 vs 20.5 straddles the boundary between cells 0 and 1.
	left := detectionAt(19, 0, 20, 0)
	right := detectionAt(20, 0, 21, 0)

	assert.Equal(t, "a", s.Stabilize(left))
	assert.Equal(t, "b", s.Stabilize(right))
}
