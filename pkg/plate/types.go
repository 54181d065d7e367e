package plate

import (
	"encoding/json"
	"fmt"
	"image"
)

// BoundingBox is a detector box in pixel coordinates relative to the image
// origin. X2 and Y2 are exclusive.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
	Confidence     float64 // detector score, informational
	Label          string
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Candidate is the recognized text of one detected region before the
// acceptance test.
type Candidate struct {
	Box        BoundingBox
	Text       string
	Confidence float64
}

// Status is the outcome marker sent to clients.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// NoPlateMessage is the message of a run that accepted no candidate.
const NoPlateMessage = "No plate detected"

// DetectionResult is the successful output of a run.
type DetectionResult struct {
	PlateNumber  string  `json:"plate_number"`
	Confidence   float64 `json:"confidence"`
	Timestamp    string  `json:"timestamp"`
	PreviewImage string  `json:"preview_image"`
	Status       Status  `json:"status"`
}

// Outcome is what a run produces: either a result or a failure message.
// A missing plate is a normal outcome, not an error.
type Outcome struct {
	Result  *DetectionResult
	Message string
}

// NoPlate returns the outcome of a run that found nothing.
func NoPlate() *Outcome {
	return &Outcome{Message: NoPlateMessage}
}

// Found reports whether a candidate was accepted.
func (o *Outcome) Found() bool {
	return o != nil && o.Result != nil
}

// MarshalJSON writes the result as is, or {"status":"Failed","message":...}.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	if o.Found() {
		return json.Marshal(o.Result)
	}
	return json.Marshal(struct {
		Status  Status `json:"status"`
		Message string `json:"message"`
	}{StatusFailed, o.Message})
}

// AnnotateMode decides which candidates end up on the preview image.
type AnnotateMode int

const (
	// AnnotateAccepted draws only the accepted candidate.
	AnnotateAccepted AnnotateMode = iota
	// AnnotateVisited draws every candidate evaluated up to and including
	// the accepted one.
	AnnotateVisited
)

// ParseAnnotateMode accepts "accepted" or "visited".
func ParseAnnotateMode(s string) (AnnotateMode, error) {
	switch s {
	case "", "accepted":
		return AnnotateAccepted, nil
	case "visited":
		return AnnotateVisited, nil
	}
	return AnnotateAccepted, fmt.Errorf("unknown annotate mode %q", s)
}
