package route

import (
	"net/http"
	"os"
	"path/filepath"
	"visionstream/internal/config"
	"visionstream/internal/handler"
	"visionstream/internal/logger"
	"visionstream/internal/middleware"
	"visionstream/internal/repository"
	"visionstream/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the mux with the recovery and logging middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger, gatherer prometheus.Gatherer,
	artifactRepo repository.ArtifactRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Pipeline endpoints
	mux.HandleFunc("/video_feed", handler.VideoFeedHandler(manager, logger))
	mux.HandleFunc("/capture", handler.CaptureHandler(manager, cfg, logger))
	mux.HandleFunc("/upload", handler.UploadHandler(manager, cfg, logger))
	mux.Handle("/preview", manager.GetPreview())

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/artifacts", handler.GetArtifactsHandler(cfg, logger, artifactRepo, detectionRepo))
	mux.HandleFunc("/api/artifacts/stats", handler.GetArtifactStatsHandler(logger, artifactRepo, detectionRepo))
	mux.HandleFunc("/api/artifacts/delete", handler.DeleteArtifactHandler(logger, artifactRepo))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Log endpoints
	for _, level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	// Automatic HTML handler mapping for example: /gallery -> <static>/gallery.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.RecoverMiddleware(logger, middleware.LoggingMiddleware(logger, mux))
}
