package detector

import (
	"context"
	"image"

	"ecoscout/pkg/plate"
)

// FullFrame reports one box covering the whole image. Use it when inputs are
// already cropped to the plate.
type FullFrame struct{}

func (FullFrame) Name() string { return "fullframe" }

func (FullFrame) Detect(ctx context.Context, img image.Image) ([]plate.BoundingBox, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	return []plate.BoundingBox{{X2: b.Dx(), Y2: b.Dy(), Confidence: 1, Label: "frame"}}, nil
}
