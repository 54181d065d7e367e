package plate

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func TestClampBox(t *testing.T) {
	cases := []struct {
		name string
		in   BoundingBox
		want BoundingBox
	}{
		{"inside", BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 40}, BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 40}},
		{"negative", BoundingBox{X1: -5, Y1: -3, X2: 10, Y2: 10}, BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{"overflow", BoundingBox{X1: 90, Y1: 40, X2: 500, Y2: 500}, BoundingBox{X1: 90, Y1: 40, X2: 100, Y2: 50}},
	}
	for _, tc := range cases {
		got := ClampBox(tc.in, 100, 50)
		if got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestExtractRegion(t *testing.T) {
	img := imaging.New(100, 50, color.White)
	crop, clamped, err := ExtractRegion(img, BoundingBox{X1: 80, Y1: -10, X2: 130, Y2: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crop.Bounds().Dx() != 20 || crop.Bounds().Dy() != 20 {
		t.Fatalf("expected 20x20 crop got %v", crop.Bounds())
	}
	if clamped.X2 != 100 || clamped.Y1 != 0 {
		t.Fatalf("unexpected clamped box %v", clamped)
	}
}

func TestExtractRegionEmpty(t *testing.T) {
	img := imaging.New(100, 50, color.White)
	for _, b := range []BoundingBox{
		{X1: 10, Y1: 10, X2: 10, Y2: 20},
		{X1: 20, Y1: 10, X2: 10, Y2: 20},
		{X1: 150, Y1: 0, X2: 200, Y2: 20},
	} {
		if _, _, err := ExtractRegion(img, b); !errors.Is(err, ErrEmptyRegion) {
			t.Fatalf("box %v: expected ErrEmptyRegion got %v", b, err)
		}
	}
}

func TestExtractRegionOffsetBounds(t *testing.T) {
	base := imaging.New(100, 100, color.Black)
	base.Set(15, 15, color.White)
	sub := base.SubImage(image.Rect(10, 10, 60, 60))
	// box coordinates are relative to the sub-image origin
	crop, _, err := ExtractRegion(sub, BoundingBox{X1: 5, Y1: 5, X2: 10, Y2: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, _, _, _ := crop.At(0, 0).RGBA()
	if r != 0xffff {
		t.Fatalf("expected the white marker at the crop origin")
	}
}

func TestPreviewRoundTrip(t *testing.T) {
	img := imaging.New(37, 21, color.NRGBA{R: 255, A: 255})
	s, err := EncodePreview(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(s, PreviewPrefix) {
		t.Fatalf("missing data uri prefix")
	}
	back, err := DecodePreview(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Bounds().Dx() != 37 || back.Bounds().Dy() != 21 {
		t.Fatalf("expected 37x21 got %v", back.Bounds())
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(8, 4, color.White)); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Fatalf("expected width 8 got %d", img.Bounds().Dx())
	}

	for _, bad := range [][]byte{nil, []byte("hello world"), buf.Bytes()[:20]} {
		if _, err := DecodeImage(bad); !errors.Is(err, ErrInvalidImage) {
			t.Fatalf("expected ErrInvalidImage for %q, got %v", bad, err)
		}
	}
}

func TestAnnotateDrawsOnCopy(t *testing.T) {
	src := imaging.New(80, 60, color.Black)
	a := DefaultAnnotator()
	out, err := a.Annotate(src, []Candidate{{Box: BoundingBox{X1: 10, Y1: 20, X2: 50, Y2: 40}, Text: "AB1"}})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if out.Bounds() != src.Bounds() {
		t.Fatalf("preview bounds %v want %v", out.Bounds(), src.Bounds())
	}

	for i, v := range src.Pix {
		if v != 0 && i%4 != 3 {
			t.Fatalf("source modified at byte %d", i)
		}
	}
	_, green, _, _ := out.At(10, 30).RGBA()
	if green != 0xffff {
		t.Fatalf("expected green left edge at (10,30)")
	}
	_, inner, _, _ := out.At(30, 30).RGBA()
	if inner != 0 {
		t.Fatalf("box interior should stay untouched")
	}
	// text baseline sits 10px above the box top
	found := false
	for y := 0; y < 20 && !found; y++ {
		for x := 10; x < 40; x++ {
			if _, gg, _, _ := out.At(x, y).RGBA(); gg == 0xffff {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("expected label pixels above the box")
	}
}
