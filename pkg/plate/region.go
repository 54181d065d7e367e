package plate

import (
	"image"

	"github.com/disintegration/imaging"
)

// ExtractRegion crops box out of img. The box is first clamped to the image
// extent; the clamped box is returned alongside the crop. A box that clamps
// to zero width or height yields ErrEmptyRegion.
func ExtractRegion(img image.Image, box BoundingBox) (*image.NRGBA, BoundingBox, error) {
	b := img.Bounds()
	clamped := ClampBox(box, b.Dx(), b.Dy())
	if clamped.X1 >= clamped.X2 || clamped.Y1 >= clamped.Y2 {
		return nil, clamped, ErrEmptyRegion
	}
	crop := imaging.Crop(img, clamped.Rect().Add(b.Min))
	return crop, clamped, nil
}

// ClampBox limits every coordinate to [0,w] horizontally and [0,h]
// vertically.
func ClampBox(box BoundingBox, w, h int) BoundingBox {
	box.X1 = clampInt(box.X1, 0, w)
	box.X2 = clampInt(box.X2, 0, w)
	box.Y1 = clampInt(box.Y1, 0, h)
	box.Y2 = clampInt(box.Y2, 0, h)
	return box
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
