package ai

import (
	"image"
	"image/color"
	"strings"
	"unicode"
	"visionstream/internal/model"

	"gocv.io/x/gocv"
)

const (
	boxThickness = 2
	tagHeight    = 30
	tagPadding   = 5 // Horizontal padding on each side of the text
	tagBaseline  = 8 // Distance from the bottom of the tag to the text baseline
	tagFont      = gocv.FontHersheyDuplex
	tagScale     = 0.6
	tagThickness = 1

	PositiveTag = "MASKED"
	NegativeTag = "NO MASK"
)

var (
	positiveColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	negativeColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Classifier derives the primary binary classification from a class label.
type Classifier struct {
	positive  string
	negatives []string
}

// NewClassifier creates a Classifier. A label is positive when it contains
// positive and carries none of the negative marker words.
func NewClassifier(positive string, negatives []string) Classifier {
	c := Classifier{positive: strings.ToLower(positive)}
	for _, n := range negatives {
		c.negatives = append(c.negatives, strings.ToLower(n))
	}
	return c
}

// IsPositive classifies a label, ignoring case. "mask" is positive while
// "no mask", "No-Mask" and "nomask" are negative.
func (c Classifier) IsPositive(label string) bool {
	lower := strings.ToLower(label)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		for _, negative := range c.negatives {
			if word == negative || word == negative+c.positive {
				return false
			}
		}
	}
	return strings.Contains(lower, c.positive)
}

// Annotator draws detections onto frames.
type Annotator struct {
	classifier Classifier
	stabilizer *Stabilizer
}

// NewAnnotator creates an Annotator.
func NewAnnotator(classifier Classifier, stabilizer *Stabilizer) *Annotator {
	return &Annotator{
		classifier: classifier,
		stabilizer: stabilizer,
	}
}

// Tag returns the text drawn above a detection, "<PRIMARY> | <SECONDARY>".
func (a *Annotator) Tag(det model.Detection) string {
	primary := NegativeTag
	if a.classifier.IsPositive(det.Label) {
		primary = PositiveTag
	}
	return primary + " | " + strings.ToUpper(a.stabilizer.Stabilize(det))
}

// Annotate draws every detection onto frame in place and returns frame.
// Zero-area boxes only get their (zero-extent) rectangle.
func (a *Annotator) Annotate(frame *gocv.Mat, detections []model.Detection) *gocv.Mat {
	if frame == nil || frame.Empty() {
		return frame
	}
	for _, det := range detections {
		a.draw(frame, det)
	}
	return frame
}

// draw renders a single detection. Drawing errors abandon that detection only.
func (a *Annotator) draw(frame *gocv.Mat, det model.Detection) {
	box := det.Box.Normalize()
	rect := box.Rect()

	c := negativeColor
	if a.classifier.IsPositive(det.Label) {
		c = positiveColor
	}

	if err := gocv.Rectangle(frame, rect, c, boxThickness); err != nil {
		return
	}
	if box.Empty() {
		return
	}

	tag := a.Tag(det)
	textSize := gocv.GetTextSize(tag, tagFont, tagScale, tagThickness)
	background := tagRect(rect.Min, textSize.X, frame.Cols(), frame.Rows())

	if err := gocv.Rectangle(frame, background, c, -1); err != nil {
		return
	}
	origin := image.Pt(background.Min.X+tagPadding, background.Max.Y-tagBaseline)
	_ = gocv.PutText(frame, tag, origin, tagFont, tagScale, textColor, tagThickness)
}

// tagRect places the label background directly above anchor, shifted as
// little as needed to stay inside a cols x rows frame.
func tagRect(anchor image.Point, textWidth, cols, rows int) image.Rectangle {
	w := textWidth + 2*tagPadding
	h := tagHeight

	x := anchor.X
	if x+w > cols {
		x = cols - w
	}
	if x < 0 {
		x = 0
	}

	y := anchor.Y - h
	if y+h > rows {
		y = rows - h
	}
	if y < 0 {
		y = 0
	}

	return image.Rect(x, y, x+w, y+h)
}
