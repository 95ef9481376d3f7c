package dto

import (
	"encoding/json"
	"time"
	"visionstream/internal/model"
)

// ArtifactInfo describes a stored artifact in gallery responses.
type ArtifactInfo struct {
	Name      string             `json:"name"`
	Kind      model.ArtifactKind `json:"kind"`
	URL       string             `json:"url"`
	Timestamp time.Time          `json:"timestamp"`
	Size      int64              `json:"size"`
	Labels    []string           `json:"labels"`
}

// MarshalJSON formats the timestamp as date and time-of-day fields.
func (a ArtifactInfo) MarshalJSON() ([]byte, error) {
	type Alias ArtifactInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      a.Timestamp.Format("02-01-2006"),
		TimeOfDay: a.Timestamp.Format("15:04:05"),
		Alias:     (Alias)(a),
	})
}
