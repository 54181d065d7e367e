package plate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Annotator renders candidates onto a preview. Implementations must not
// modify src.
type Annotator interface {
	Annotate(src image.Image, cands []Candidate) (image.Image, error)
}

// BoxAnnotator draws each candidate's box and text on a copy of the source.
type BoxAnnotator struct {
	Color      color.RGBA
	Thickness  int
	Font       gocv.HersheyFont
	FontScale  float64
	TextOffset int // baseline distance above the box top
}

// DefaultAnnotator returns the preview style: 2px green boxes with the text
// 10px above the box in Hershey simplex at 0.9.
func DefaultAnnotator() *BoxAnnotator {
	return &BoxAnnotator{
		Color:      color.RGBA{R: 0, G: 255, B: 0, A: 0},
		Thickness:  2,
		Font:       gocv.FontHersheySimplex,
		FontScale:  0.9,
		TextOffset: 10,
	}
}

// Annotate returns a new image; src is left untouched.
func (a *BoxAnnotator) Annotate(src image.Image, cands []Candidate) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(imaging.Clone(src))
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	defer mat.Close()

	for _, c := range cands {
		gocv.Rectangle(&mat, c.Box.Rect(), a.Color, a.Thickness)
		if c.Text == "" {
			continue
		}
		gocv.PutText(&mat, c.Text, image.Pt(c.Box.X1, c.Box.Y1-a.TextOffset),
			a.Font, a.FontScale, a.Color, a.Thickness)
	}

	out, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	return out, nil
}
