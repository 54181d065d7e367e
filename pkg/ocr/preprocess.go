package ocr

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// ConditionOptions holds the constants of the conditioning chain.
type ConditionOptions struct {
	Scale     int     // linear upscale factor
	ClipLimit float64 // CLAHE clip limit, 0 disables equalization
	TileGrid  int     // CLAHE tiles per axis
}

// DefaultConditionOptions returns the plate conditioning constants:
// 2x upscale, CLAHE clip 2.0 on an 8x8 grid.
func DefaultConditionOptions() ConditionOptions {
	return ConditionOptions{Scale: 2, ClipLimit: 2.0, TileGrid: 8}
}

// Condition turns a color plate crop into a binary image for recognition:
// grayscale, cubic upscale, local contrast equalization, then one global
// Otsu threshold. The input is not modified. The result always starts at
// (0,0) and is Scale times the input in each dimension.
func Condition(img image.Image) (*image.Gray, error) {
	return ConditionWith(img, DefaultConditionOptions())
}

// ConditionWith is Condition with explicit constants.
func ConditionWith(img image.Image, opts ConditionOptions) (*image.Gray, error) {
	b := img.Bounds()
	if b.Empty() {
		return image.NewGray(image.Rect(0, 0, 0, 0)), nil
	}

	// rebase to (0,0) so the Mat rows line up with Pix
	src := imaging.Clone(img)
	rgba, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("condition: mat from image: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)

	if opts.Scale > 1 {
		up := gocv.NewMat()
		defer up.Close()
		gocv.Resize(gray, &up, image.Pt(b.Dx()*opts.Scale, b.Dy()*opts.Scale), 0, 0, gocv.InterpolationCubic)
		gray, up = up, gray
	}

	if opts.ClipLimit > 0 && opts.TileGrid > 0 {
		eq := gocv.NewMat()
		defer eq.Close()
		clahe := gocv.NewCLAHEWithParams(opts.ClipLimit, image.Pt(opts.TileGrid, opts.TileGrid))
		clahe.Apply(gray, &eq)
		clahe.Close()
		gray, eq = eq, gray
	}

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	out, err := bin.ToImage()
	if err != nil {
		return nil, fmt.Errorf("condition: mat to image: %w", err)
	}
	if g, ok := out.(*image.Gray); ok {
		return g, nil
	}
	return toGray(out), nil
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return g
}
