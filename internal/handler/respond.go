package handler

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"visionstream/internal/config"
	"visionstream/internal/logger"
)

// respondJSON writes v as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// staticURL maps a file below the static directory to the URL it is served under.
func staticURL(cfg *config.Config, path string) string {
	rel, err := filepath.Rel(cfg.StaticDirectory, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "/static/" + filepath.Base(path)
	}
	return "/static/" + filepath.ToSlash(rel)
}
