// ArtifactsData is a paginated response payload for the artifact gallery.
package dto

type ArtifactsData struct {
	Artifacts   []ArtifactInfo `json:"artifacts"`
	Size        int64          `json:"size"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}

// ArtifactStats summarizes the catalog.
type ArtifactStats struct {
	TotalArtifacts int            `json:"total_artifacts"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerKind        map[string]int `json:"per_kind"`
	LabelCounts    map[string]int `json:"label_counts"`
}
