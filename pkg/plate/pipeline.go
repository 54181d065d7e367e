package plate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"ecoscout/pkg/ocr"
)

// TimestampLayout is the format of DetectionResult.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Detector locates candidate plate regions. Boxes are evaluated in the
// order they are returned.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]BoundingBox, error)
}

// Recognizer reads text from a conditioned plate image. Fragment text must be
// restricted to opts.Allowlist; a fragment whose text filters down to ""
// is still returned so its confidence counts toward the mean. An empty
// slice is not an error.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Fragment, error)
}

// Pipeline runs detection, recognition and candidate selection for one image
// at a time. It holds no per-run state and is safe for concurrent use when
// its detector and recognizer are.
type Pipeline struct {
	detector   Detector
	recognizer Recognizer
	annotator  Annotator
	ocrOpts    ocr.Options
	condOpts   ocr.ConditionOptions
	mode       AnnotateMode
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAnnotator replaces the default box annotator.
func WithAnnotator(a Annotator) Option {
	return func(p *Pipeline) { p.annotator = a }
}

// WithAnnotateMode selects which candidates are drawn on the preview.
func WithAnnotateMode(m AnnotateMode) Option {
	return func(p *Pipeline) { p.mode = m }
}

// WithClock sets the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRecognizeOptions overrides the options passed to the recognizer.
func WithRecognizeOptions(o ocr.Options) Option {
	return func(p *Pipeline) { p.ocrOpts = o }
}

// WithConditionOptions overrides the plate conditioning parameters.
func WithConditionOptions(o ocr.ConditionOptions) Option {
	return func(p *Pipeline) { p.condOpts = o }
}

// New builds a pipeline around the given capabilities.
func New(d Detector, r Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector:   d,
		recognizer: r,
		annotator:  DefaultAnnotator(),
		ocrOpts:    ocr.DefaultOptions(),
		condOpts:   ocr.DefaultConditionOptions(),
		mode:       AnnotateAccepted,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// DetectBytes decodes data and runs Detect. Undecodable input is reported as
// ErrInvalidImage.
func (p *Pipeline) DetectBytes(ctx context.Context, data []byte) (*Outcome, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return p.Detect(ctx, img)
}

// Detect runs the full pipeline on img. A run that accepts no candidate
// returns NoPlate() with a nil error; errors are reserved for detector and
// recognizer failures.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) (*Outcome, error) {
	boxes, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(boxes) == 0 {
		log.Printf("PLATE no boxes")
		return NoPlate(), nil
	}

	accepted, visited, err := p.selectCandidate(ctx, img, boxes)
	if err != nil {
		return nil, err
	}
	if accepted == nil {
		log.Printf("PLATE no candidate accepted boxes=%d visited=%d", len(boxes), len(visited))
		return NoPlate(), nil
	}

	draw := []Candidate{*accepted}
	if p.mode == AnnotateVisited {
		draw = visited
	}
	annotated, err := p.annotator.Annotate(img, draw)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	preview, err := EncodePreview(annotated)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	return &Outcome{Result: &DetectionResult{
		PlateNumber:  strings.ToUpper(accepted.Text),
		Confidence:   roundConfidence(accepted.Confidence),
		Timestamp:    p.now().Format(TimestampLayout),
		PreviewImage: preview,
		Status:       StatusSuccess,
	}}, nil
}

// selectCandidate walks boxes in order and returns the first candidate that
// passes the acceptance test, together with every candidate visited so far
// (accepted one included).
func (p *Pipeline) selectCandidate(ctx context.Context, img image.Image, boxes []BoundingBox) (*Candidate, []Candidate, error) {
	var visited []Candidate
	for i, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, visited, err
		}
		crop, clamped, err := ExtractRegion(img, box)
		if errors.Is(err, ErrEmptyRegion) {
			log.Printf("PLATE skip box=%d %s: empty after clamp", i, box)
			continue
		}
		if err != nil {
			return nil, visited, fmt.Errorf("box %d: %w", i, err)
		}

		cond, err := ocr.ConditionWith(crop, p.condOpts)
		if err != nil {
			return nil, visited, fmt.Errorf("box %d: %w", i, err)
		}
		frags, err := p.recognizer.Recognize(ctx, cond, p.ocrOpts)
		if err != nil {
			return nil, visited, fmt.Errorf("recognize box %d: %w", i, err)
		}
		text, conf := ocr.Aggregate(frags)
		cand := Candidate{Box: clamped, Text: text, Confidence: conf}
		visited = append(visited, cand)
		log.Printf("PLATE box=%d %s text=%q conf=%.2f frags=%s", i, clamped, text, conf, ocr.Describe(frags))

		if accept(text) {
			return &visited[len(visited)-1], visited, nil
		}
	}
	return nil, visited, nil
}

// accept is the minimum-length rule: more than one character.
func accept(text string) bool {
	return utf8.RuneCountInString(text) > 1
}

// roundConfidence keeps two decimals, ties to even (0.125 -> 0.12).
func roundConfidence(c float64) float64 {
	return math.RoundToEven(c*100) / 100
}
