package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"visionstream/internal/config"
	"visionstream/internal/dto"
	"visionstream/internal/logger"
	"visionstream/internal/service"
	"visionstream/internal/service/ai"
)

const (
	uploadField = "file"

	errNoUpload        = "No data stream provided"
	errEmptyUpload     = "Empty reference"
	errUndecodable     = "Incompatible data format"
	errAnalysisFailure = "Analysis failed"
)

// UploadHandler runs detection on a single uploaded image and stores the
// annotated result under the static directory.
func UploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			logger.Warning("Upload without %q field: %v", uploadField, err)
			respondJSON(w, logger, http.StatusOK, dto.UploadResult{Error: errNoUpload})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Warning("Error reading upload %s: %v", header.Filename, err)
			respondJSON(w, logger, http.StatusOK, dto.UploadResult{Error: errNoUpload})
			return
		}
		if header.Filename == "" || len(data) == 0 {
			respondJSON(w, logger, http.StatusOK, dto.UploadResult{Error: errEmptyUpload})
			return
		}

		archiver := manager.GetArchiver()
		if path, err := archiver.SaveUpload(data, filepath.Ext(header.Filename)); err != nil {
			logger.Error("Error saving upload %s: %v", header.Filename, err)
		} else {
			logger.Info("Upload %s stored as %s", header.Filename, path)
		}

		result, err := manager.InferOnce(data)
		if errors.Is(err, ai.ErrDecode) {
			respondJSON(w, logger, http.StatusOK, dto.UploadResult{Error: errUndecodable})
			return
		}
		if err != nil {
			logger.Error("Analysis of %s failed: %v", header.Filename, err)
			respondJSON(w, logger, http.StatusInternalServerError, dto.UploadResult{Error: errAnalysisFailure})
			return
		}

		name, err := archiver.SaveResult(result.Image, result.Detections)
		if err != nil {
			logger.Error("Error saving analysis of %s: %v", header.Filename, err)
			respondJSON(w, logger, http.StatusInternalServerError, dto.UploadResult{Error: errAnalysisFailure})
			return
		}

		respondJSON(w, logger, http.StatusOK, dto.UploadResult{
			Success:    true,
			ResultURL:  "/static/" + name,
			Detections: len(result.Detections),
		})
	}
}
