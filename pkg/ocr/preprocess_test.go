package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// splitImage returns a w x h color image whose left half is dark and right
// half is bright.
func splitImage(w, h int, dark, bright uint8) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{dark, dark, dark, 255})
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, color.NRGBA{bright, bright / 2, bright, 255})
		}
	}
	return img
}

func TestConditionDoublesSizeAndBinarizes(t *testing.T) {
	src := splitImage(32, 8, 40, 210)
	out, err := Condition(src)
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 16 {
		t.Fatalf("expected 64x16 got %v", out.Bounds())
	}
	for _, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("expected binary output, found level %d", v)
		}
	}
	// away from the edge between the halves the split must survive
	for y := 0; y < 16; y++ {
		if out.GrayAt(4, y).Y != 0 || out.GrayAt(20, y).Y != 0 {
			t.Fatalf("dark half not black at row %d", y)
		}
		if out.GrayAt(44, y).Y != 255 || out.GrayAt(60, y).Y != 255 {
			t.Fatalf("bright half not white at row %d", y)
		}
	}
}

func TestConditionDoesNotModifyInput(t *testing.T) {
	src := splitImage(16, 6, 30, 220)
	before := imaging.Clone(src)
	if _, err := Condition(src); err != nil {
		t.Fatalf("condition: %v", err)
	}
	for i := range src.Pix {
		if src.Pix[i] != before.Pix[i] {
			t.Fatalf("input changed at byte %d", i)
		}
	}
}

func TestConditionOffsetBounds(t *testing.T) {
	full := splitImage(40, 20, 20, 240)
	sub := full.SubImage(image.Rect(10, 5, 30, 15))
	out, err := Condition(sub)
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 40, 20) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
}

func TestConditionEmpty(t *testing.T) {
	out, err := Condition(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if !out.Bounds().Empty() {
		t.Fatalf("expected empty output got %v", out.Bounds())
	}
}

func TestConditionWithoutEqualization(t *testing.T) {
	src := splitImage(20, 10, 60, 200)
	out, err := ConditionWith(src, ConditionOptions{Scale: 1})
	if err != nil {
		t.Fatalf("condition: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if out.GrayAt(2, 5).Y != 0 || out.GrayAt(17, 5).Y != 255 {
		t.Fatalf("otsu split lost: left=%d right=%d", out.GrayAt(2, 5).Y, out.GrayAt(17, 5).Y)
	}
}
