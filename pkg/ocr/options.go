package ocr

import "image"

// PlateAlphabet is the character allowlist for plate text: uppercase Latin
// letters and digits, no punctuation.
const PlateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SegmentationMode controls how a recognizer groups text it finds.
type SegmentationMode int

const (
	// SegmentNoParagraph keeps every fragment separate. Plates are short
	// single or two line strings and must not be merged like prose.
	SegmentNoParagraph SegmentationMode = iota
	// SegmentParagraph lets the engine merge fragments into blocks.
	SegmentParagraph
)

// DetailLevel selects the granularity of returned fragments.
type DetailLevel int

const (
	// DetailFull returns one (region, text, confidence) triple per word.
	DetailFull DetailLevel = iota
	// DetailLine returns one triple per text line.
	DetailLine
)

// Options is passed to every recognizer call.
type Options struct {
	Allowlist    string
	Segmentation SegmentationMode
	Detail       DetailLevel
}

// DefaultOptions returns the options used for plate recognition.
func DefaultOptions() Options {
	return Options{
		Allowlist:    PlateAlphabet,
		Segmentation: SegmentNoParagraph,
		Detail:       DetailFull,
	}
}

// Fragment is one piece of recognized text. Confidence is in [0,1].
type Fragment struct {
	Region     image.Rectangle
	Text       string
	Confidence float64
}
