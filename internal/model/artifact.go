package model

import "time"

// ArtifactKind tells what produced a persisted image.
type ArtifactKind string

const (
	ArtifactSnapshot ArtifactKind = "snapshot"
	ArtifactAnalysis ArtifactKind = "analysis"
)

// Artifact represents a persisted image record.
type Artifact struct {
	ID        int64        `json:"id"`
	Filename  string       `json:"filename"`
	Kind      ArtifactKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	FilePath  string       `json:"filepath"`
	FileSize  int64        `json:"filesize"`
}

// DetectionRecord is a detection stored alongside an artifact.
type DetectionRecord struct {
	ID         int64   `json:"id"`
	ArtifactID int64   `json:"artifact_id"`
	Label      string  `json:"label"`
	Attribute  string  `json:"attribute"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}
