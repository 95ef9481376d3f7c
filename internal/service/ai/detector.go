package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"
	"visionstream/internal/config"
	"visionstream/internal/logger"
	"visionstream/internal/model"

	"gocv.io/x/gocv"
)

const (
	// DefaultInputSize is the square input the YOLO network is exported with.
	DefaultInputSize = 640
	// yoloHeader is the number of leading values per output row: cx, cy, w, h, objectness.
	yoloHeader = 5
	// classOffset separates boxes of different classes so NMS never merges them.
	classOffset = 4096
)

var (
	ErrNetworkNotLoaded = errors.New("detection network not initialized")
	ErrEmptyFrame       = errors.New("frame is empty")
)

// Detector turns an image into detections. Implementations must not modify frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]model.Detection, error)
}

// DetectorService runs a YOLO network through the OpenCV DNN module.
type DetectorService struct {
	net          gocv.Net
	mu           sync.Mutex
	closed       bool
	modelPath    string
	configPath   string
	inputSize    int
	threshold    float32
	nmsThreshold float32
	classNames   []string
	logger       *logger.Logger
}

// NewDetectorService loads the network described by the config. A model that
// cannot be loaded is returned as an error; the caller must not serve traffic.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	inputSize := config.InputSize
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}

	service := &DetectorService{
		modelPath:    config.ModelPath,
		configPath:   config.ModelConfigPath,
		inputSize:    inputSize,
		threshold:    float32(config.ConfidenceThreshold),
		nmsThreshold: float32(config.NMSThreshold),
		classNames:   config.ClassNames,
		logger:       logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s: %w", s.modelPath, err)
	}

	if s.configPath != "" {
		if _, err := os.Stat(s.configPath); err != nil {
			return fmt.Errorf("model config file not found: %s: %w", s.configPath, err)
		}
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable target: %w", err)
	}

	s.net = net
	s.logger.Info("Detection network loaded from %s (%d classes, threshold %.2f)", s.modelPath, len(s.classNames), s.threshold)
	return nil
}

// Detect runs one inference pass. Only detections at or above the configured
// confidence threshold are returned; this is the single place it is applied.
func (s *DetectorService) Detect(frame gocv.Mat) ([]model.Detection, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.net.Empty() {
		return nil, ErrNetworkNotLoaded
	}

	size := image.Pt(s.inputSize, s.inputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network returned no output")
	}

	dims := output.Size()
	stride := dims[len(dims)-1]
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	scaleX := float64(frame.Cols()) / float64(s.inputSize)
	scaleY := float64(frame.Rows()) / float64(s.inputSize)
	candidates := decodeOutput(data, stride, scaleX, scaleY, s.threshold)
	if len(candidates) == 0 {
		return []model.Detection{}, nil
	}

	keep := s.suppress(candidates)

	bounds := model.Box{X2: float64(frame.Cols()), Y2: float64(frame.Rows())}
	detections := make([]model.Detection, 0, len(keep))
	for _, i := range keep {
		c := candidates[i]
		detections = append(detections, model.Detection{
			Box:        clampBox(c.box, bounds),
			ClassID:    c.classID,
			Label:      s.label(c.classID),
			Confidence: float64(c.score),
		})
	}
	return detections, nil
}

// suppress runs class-aware non-maximum suppression. The score threshold
// passed to OpenCV is zero because candidates are already filtered.
func (s *DetectorService) suppress(candidates []candidate) []int {
	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		offset := image.Pt(c.classID*classOffset, c.classID*classOffset)
		rects[i] = c.box.Rect().Add(offset)
		scores[i] = c.score
	}

	keep := gocv.NMSBoxes(rects, scores, 0, s.nmsThreshold)
	sort.Ints(keep)
	return keep
}

// label maps a class id to its configured name.
func (s *DetectorService) label(classID int) string {
	if classID >= 0 && classID < len(s.classNames) {
		return s.classNames[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

// Close releases the network. Later Detect calls fail with ErrNetworkNotLoaded.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.net.Close()
}

type candidate struct {
	box     model.Box
	classID int
	score   float32
}

// decodeOutput parses YOLOv5 rows [cx, cy, w, h, objectness, class scores...]
// given in network input pixels and rescales them to the frame.
func decodeOutput(data []float32, stride int, scaleX, scaleY float64, threshold float32) []candidate {
	if stride <= yoloHeader {
		return nil
	}

	var candidates []candidate
	for row := 0; row+stride <= len(data); row += stride {
		values := data[row : row+stride]
		objectness := values[4]
		if objectness < threshold {
			continue
		}

		classID, best := 0, float32(0)
		for i, score := range values[yoloHeader:] {
			if score > best {
				classID, best = i, score
			}
		}

		confidence := objectness * best
		if confidence < threshold {
			continue
		}

		cx, cy := float64(values[0]), float64(values[1])
		w, h := float64(values[2]), float64(values[3])
		candidates = append(candidates, candidate{
			box: model.Box{
				X1: (cx - w/2) * scaleX,
				Y1: (cy - h/2) * scaleY,
				X2: (cx + w/2) * scaleX,
				Y2: (cy + h/2) * scaleY,
			}.Normalize(),
			classID: classID,
			score:   confidence,
		})
	}
	return candidates
}

// clampBox limits b to bounds.
func clampBox(b, bounds model.Box) model.Box {
	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return model.Box{
		X1: clamp(b.X1, bounds.X1, bounds.X2),
		Y1: clamp(b.Y1, bounds.Y1, bounds.Y2),
		X2: clamp(b.X2, bounds.X1, bounds.X2),
		Y2: clamp(b.Y2, bounds.Y1, bounds.Y2),
	}
}
