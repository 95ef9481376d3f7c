package handler

import (
	"errors"
	"net/http"
	"visionstream/internal/config"
	"visionstream/internal/dto"
	"visionstream/internal/logger"
	"visionstream/internal/service"
	"visionstream/internal/service/storage"
)

const errNoFrames = "Inference node not providing frames"

// CaptureHandler archives the latest annotated frame as a snapshot.
func CaptureHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path, err := manager.Capture()
		if errors.Is(err, storage.ErrNoFrameAvailable) {
			respondJSON(w, logger, http.StatusOK, dto.CaptureResult{Error: errNoFrames})
			return
		}
		if err != nil {
			logger.Error("Snapshot failed: %v", err)
			respondJSON(w, logger, http.StatusInternalServerError, dto.CaptureResult{Error: "Snapshot could not be saved"})
			return
		}

		respondJSON(w, logger, http.StatusOK, dto.CaptureResult{Success: true, FilePath: staticURL(cfg, path)})
	}
}
