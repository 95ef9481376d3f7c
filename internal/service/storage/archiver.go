// Package storage persists annotated frames and uploads to disk and records
// them in the artifact catalog.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"visionstream/internal/config"
	"visionstream/internal/logger"
	"visionstream/internal/metrics"
	"visionstream/internal/model"
	"visionstream/internal/repository"
	"visionstream/internal/service/ai"

	"github.com/google/uuid"
)

const (
	snapshotPrefix = "snapshot_"
	analysisPrefix = "analysis_"
	imageExt       = ".jpg"
	// snapshotLayout gives one name per second; a second snapshot within the
	// same second replaces the first.
	snapshotLayout = "20060102_150405"
)

var ErrNoFrameAvailable = errors.New("no frame available")

// Archiver writes artifacts and keeps the catalog in step with the files.
type Archiver struct {
	capturesDir   string
	staticDir     string
	uploadsDir    string
	artifactRepo  repository.ArtifactRepository
	detectionRepo repository.DetectionRepository
	stabilizer    *ai.Stabilizer
	logger        *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewArchiver creates an Archiver. The repositories may be nil, in which case
// nothing is catalogued.
func NewArchiver(config *config.Config, logger *logger.Logger, metrics *metrics.Metrics, artifactRepo repository.ArtifactRepository, detectionRepo repository.DetectionRepository, stabilizer *ai.Stabilizer) *Archiver {
	return &Archiver{
		capturesDir:   config.CapturesDirectory,
		staticDir:     config.StaticDirectory,
		uploadsDir:    config.UploadsDirectory,
		artifactRepo:  artifactRepo,
		detectionRepo: detectionRepo,
		stabilizer:    stabilizer,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Archive saves frame as a timestamped snapshot and returns the file path.
func (a *Archiver) Archive(frame *model.Frame) (string, error) {
	if frame == nil || len(frame.JPEG) == 0 {
		return "", ErrNoFrameAvailable
	}

	ts := a.now()
	filename := SnapshotName(ts)
	fullpath := filepath.Join(a.capturesDir, filename)
	if err := writeFile(fullpath, frame.JPEG); err != nil {
		return "", err
	}

	a.metrics.Snapshots.Inc()
	a.logger.Info("Snapshot saved: %s (%d detections)", fullpath, len(frame.Detections))
	a.record(&model.Artifact{
		Filename:  filename,
		Kind:      model.ArtifactSnapshot,
		Timestamp: ts,
		FilePath:  fullpath,
		FileSize:  int64(len(frame.JPEG)),
	}, frame.Detections)

	return fullpath, nil
}

// SaveResult stores an annotated inference result under the static directory
// and returns its file name.
func (a *Archiver) SaveResult(data []byte, detections []model.Detection) (string, error) {
	ts := a.now()
	filename := AnalysisName(ts)
	fullpath := filepath.Join(a.staticDir, filename)
	if err := writeFile(fullpath, data); err != nil {
		return "", err
	}

	a.record(&model.Artifact{
		Filename:  filename,
		Kind:      model.ArtifactAnalysis,
		Timestamp: ts,
		FilePath:  fullpath,
		FileSize:  int64(len(data)),
	}, detections)

	return filename, nil
}

// SaveUpload keeps the raw uploaded bytes under a random name and returns the
// file path. ext is the extension of the client's file name, as returned by
// filepath.Ext.
func (a *Archiver) SaveUpload(data []byte, ext string) (string, error) {
	fullpath := filepath.Join(a.uploadsDir, uuid.NewString()+strings.ToLower(ext))
	if err := writeFile(fullpath, data); err != nil {
		return "", err
	}
	return fullpath, nil
}

// Index catalogs a file that already exists on disk. Files already in the
// catalog are left as they are, detections included.
func (a *Archiver) Index(fullpath string) (*model.Artifact, error) {
	filename := filepath.Base(fullpath)
	kind, ts, ok := ParseArtifactName(filename)
	if !ok {
		return nil, fmt.Errorf("not an artifact name: %s", filename)
	}

	if a.artifactRepo != nil {
		existing, err := a.artifactRepo.GetByFilename(filename)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	info, err := os.Stat(fullpath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", fullpath, err)
	}

	artifact := &model.Artifact{
		Filename:  filename,
		Kind:      kind,
		Timestamp: ts,
		FilePath:  fullpath,
		FileSize:  info.Size(),
	}
	if a.artifactRepo == nil {
		return artifact, nil
	}
	if _, err := a.artifactRepo.Upsert(artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// record catalogs an artifact. Catalog errors are logged only; the file on
// disk is the source of truth.
func (a *Archiver) record(artifact *model.Artifact, detections []model.Detection) {
	if a.artifactRepo == nil {
		return
	}

	id, err := a.artifactRepo.Upsert(artifact)
	if err != nil {
		a.logger.Error("Error saving artifact %s to database: %v", artifact.Filename, err)
		return
	}

	if a.detectionRepo == nil || len(detections) == 0 {
		return
	}

	records := make([]model.DetectionRecord, 0, len(detections))
	for _, det := range detections {
		rect := det.Box.Rect()
		records = append(records, model.DetectionRecord{
			ArtifactID: id,
			Label:      det.Label,
			Attribute:  a.stabilizer.Stabilize(det),
			X1:         rect.Min.X,
			Y1:         rect.Min.Y,
			X2:         rect.Max.X,
			Y2:         rect.Max.Y,
			Confidence: det.Confidence,
		})
	}
	if err := a.detectionRepo.InsertBatch(records); err != nil {
		a.logger.Error("Error saving detections to database: %v", err)
	}
}

// SnapshotName returns the snapshot file name for ts.
func SnapshotName(ts time.Time) string {
	return snapshotPrefix + ts.Format(snapshotLayout) + imageExt
}

// AnalysisName returns the inference result file name for ts.
func AnalysisName(ts time.Time) string {
	return analysisPrefix + strconv.FormatInt(ts.Unix(), 10) + imageExt
}

// ParseArtifactName recovers the kind and timestamp encoded in an artifact
// file name.
func ParseArtifactName(filename string) (model.ArtifactKind, time.Time, bool) {
	base, ok := strings.CutSuffix(filename, imageExt)
	if !ok {
		return "", time.Time{}, false
	}

	if stamp, ok := strings.CutPrefix(base, snapshotPrefix); ok {
		ts, err := time.ParseInLocation(snapshotLayout, stamp, time.Local)
		if err != nil {
			return "", time.Time{}, false
		}
		return model.ArtifactSnapshot, ts, true
	}

	if stamp, ok := strings.CutPrefix(base, analysisPrefix); ok {
		sec, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil || sec < 0 {
			return "", time.Time{}, false
		}
		return model.ArtifactAnalysis, time.Unix(sec, 0), true
	}

	return "", time.Time{}, false
}

func writeFile(fullpath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(fullpath), err)
	}
	return nil
}
