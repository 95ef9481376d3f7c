package repository

import (
	"visionstream/internal/dto"
	"visionstream/internal/model"
)

// ArtifactRepository defines the interface for artifact data operations.
type ArtifactRepository interface {
	// Create operations
	Upsert(artifact *model.Artifact) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Artifact, error)
	GetAll(filter *dto.ArtifactFilter) ([]model.Artifact, error)
	GetTotalCount(filter *dto.ArtifactFilter) (int, error)
	GetTotalSize() (int64, error)
	GetStats() (*dto.ArtifactStats, error)

	// Delete operations
	DeleteByFilename(filename string) error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.DetectionRecord) error

	// Read operations
	GetByArtifactID(artifactID int64) ([]model.DetectionRecord, error)
	GetLabelsByArtifactID(artifactID int64) ([]string, error)
	GetAllLabels() ([]string, error)

	// Delete operations
	DeleteByArtifactID(artifactID int64) error
}
