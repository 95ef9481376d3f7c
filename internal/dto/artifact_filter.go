// ArtifactFilter describes user-provided filters to narrow the artifact list.
package dto

import (
	"time"
	"visionstream/internal/model"
)

type ArtifactFilter struct {
	Kind       model.ArtifactKind
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
