package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                int
	ModelPath           string
	ModelConfigPath     string // Optional, for Darknet/TensorFlow models
	InputSize           int    // Square network input in pixels
	ConfidenceThreshold float64
	NMSThreshold        float64
	CameraIndex         int
	FallbackCameraIndex int
	MaxEmptyFrames      int // Consecutive empty reads tolerated before a session stops
	JPEGQuality         int
	ClassNames          []string
	Attributes          []string // Secondary-attribute vocabulary, in order
	CellSize            int      // Stabilizer quantization in pixels
	PositiveMarker      string
	NegativeMarkers     []string
	StaticDirectory     string
	CapturesDirectory   string
	UploadsDirectory    string
	DatabasePath        string
	LogDirectory        string
	MaxUploadSize       int64 // Bytes
}

// Load reads the configuration from the environment. Values from envFile
// (or ./.env when envFile is empty) are applied first without overriding
// variables that are already set.
func Load(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	staticDir := getEnv("STATIC_DIR", filepath.Join(".", "static"))

	return &Config{
		Port:                getEnvAsInt("PORT", 5000),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "model", "best.onnx")),
		ModelConfigPath:     getEnv("MODEL_CONFIG_PATH", ""),
		InputSize:           getEnvAsInt("MODEL_INPUT_SIZE", 640),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.45),
		CameraIndex:         getEnvAsInt("CAMERA_INDEX", 1),
		FallbackCameraIndex: getEnvAsInt("FALLBACK_CAMERA_INDEX", 0),
		MaxEmptyFrames:      getEnvAsInt("MAX_EMPTY_FRAMES", 30),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 95),
		ClassNames:          getEnvAsList("CLASS_NAMES", []string{"mask", "no mask"}),
		Attributes:          getEnvAsList("ATTRIBUTES", []string{"Neutral", "Happy", "Sad", "Angry", "Fearful", "Surprised"}),
		CellSize:            getEnvAsInt("CELL_SIZE", 20),
		PositiveMarker:      getEnv("POSITIVE_MARKER", "mask"),
		NegativeMarkers:     getEnvAsList("NEGATIVE_MARKERS", []string{"no", "without"}),
		StaticDirectory:     staticDir,
		CapturesDirectory:   getEnv("CAPTURES_DIR", filepath.Join(staticDir, "captures")),
		UploadsDirectory:    getEnv("UPLOADS_DIR", filepath.Join(".", "uploads")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "artifacts.db")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadSize:       getEnvAsInt64("MAX_UPLOAD_SIZE", 32<<20),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
