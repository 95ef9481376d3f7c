package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"visionstream/internal/config"
	"visionstream/internal/dto"
	"visionstream/internal/logger"
	"visionstream/internal/model"
	"visionstream/internal/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 24
)

// GetArtifactsHandler returns a filtered, paginated list of archived artifacts.
func GetArtifactsHandler(cfg *config.Config, logger *logger.Logger,
	artifactRepo repository.ArtifactRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), defaultPage)
		limit := atoiDefault(q.Get("limit"), defaultLimit)

		filter := &dto.ArtifactFilter{
			Kind:       model.ArtifactKind(q.Get("kind")),
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: endOfDay(parseDate(q.Get("dateBefore"))),
		}

		totalCount, err := artifactRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting artifacts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		filter.Limit = limit
		filter.Offset = (page - 1) * limit
		artifacts, err := artifactRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying artifacts from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := artifactRepo.GetTotalSize()
		if err != nil {
			logger.Error("Error getting artifact size: %v", err)
			totalSize = 0
		}

		infos := make([]dto.ArtifactInfo, 0, len(artifacts))
		for _, a := range artifacts {
			labels := []string{}
			if detectionRepo != nil {
				found, err := detectionRepo.GetLabelsByArtifactID(a.ID)
				if err != nil {
					logger.Error("Error getting labels for artifact %d: %v", a.ID, err)
				} else if found != nil {
					labels = found
				}
			}

			infos = append(infos, dto.ArtifactInfo{
				Name:      a.Filename,
				Kind:      a.Kind,
				URL:       staticURL(cfg, a.FilePath),
				Timestamp: a.Timestamp,
				Size:      a.FileSize,
				Labels:    labels,
			})
		}

		respondJSON(w, logger, http.StatusOK, dto.ArtifactsData{
			Artifacts:   infos,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetArtifactStatsHandler returns catalog statistics and known labels.
func GetArtifactStatsHandler(logger *logger.Logger, artifactRepo repository.ArtifactRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := artifactRepo.GetStats()
		if err != nil {
			logger.Error("Error computing artifact stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		labels, err := detectionRepo.GetAllLabels()
		if err != nil {
			logger.Error("Error listing labels: %v", err)
			labels = nil
		}
		if labels == nil {
			labels = []string{}
		}

		respondJSON(w, logger, http.StatusOK, struct {
			*dto.ArtifactStats
			Labels []string `json:"labels"`
		}{stats, labels})
	}
}

// DeleteArtifactHandler removes an artifact from disk and from the catalog.
func DeleteArtifactHandler(logger *logger.Logger, artifactRepo repository.ArtifactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filename := r.URL.Query().Get("filename")
		if filename == "" || filepath.Base(filename) != filename {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		artifact, err := artifactRepo.GetByFilename(filename)
		if err != nil {
			logger.Error("Error looking up %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if artifact == nil {
			http.NotFound(w, r)
			return
		}

		if err := os.Remove(artifact.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", artifact.FilePath, err)
		}

		if err := artifactRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted artifact: %s", filename)
		respondJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// endOfDay moves a date filter to the last instant of that day.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
