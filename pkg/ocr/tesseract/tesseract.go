// Package tesseract implements plate.Recognizer on top of gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"ecoscout/pkg/ocr"
	"ecoscout/pkg/plate"
)

// Recognizer runs Tesseract on conditioned plate images. A fresh client is
// created per call; gosseract clients must not be shared across goroutines.
type Recognizer struct {
	lang string
}

// New checks that lang is installed and returns a recognizer for it.
func New(lang string) (*Recognizer, error) {
	if lang == "" {
		lang = "eng"
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract languages: %v", plate.ErrModelUnavailable, err)
	}
	if !hasLanguage(langs, lang) {
		return nil, fmt.Errorf("%w: tesseract language %q not installed (have %s)", plate.ErrModelUnavailable, lang, strings.Join(langs, ","))
	}
	log.Printf("TESSERACT version=%s lang=%s", gosseract.Version(), lang)
	return &Recognizer{lang: lang}, nil
}

func (r *Recognizer) Name() string { return "tesseract" }

// Recognize implements plate.Recognizer.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(r.lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if opts.Allowlist != "" {
		if err := client.SetWhitelist(opts.Allowlist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(pageSegMode(opts.Segmentation)); err != nil {
		return nil, fmt.Errorf("set psm: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(iteratorLevel(opts.Detail))
	if err != nil {
		return nil, fmt.Errorf("ocr error: %w", err)
	}
	return toFragments(boxes, opts.Allowlist), nil
}

func pageSegMode(m ocr.SegmentationMode) gosseract.PageSegMode {
	if m == ocr.SegmentParagraph {
		return gosseract.PSM_AUTO
	}
	return gosseract.PSM_SPARSE_TEXT
}

func iteratorLevel(d ocr.DetailLevel) gosseract.PageIteratorLevel {
	if d == ocr.DetailLine {
		return gosseract.RIL_TEXTLINE
	}
	return gosseract.RIL_WORD
}

// toFragments filters words to the allowlist and scales confidence to [0,1].
func toFragments(boxes []gosseract.BoundingBox, allow string) []ocr.Fragment {
	var frags []ocr.Fragment
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		// a word made only of disallowed runes stays, with empty text,
		// so its confidence still weighs on the mean
		text := ocr.FilterAllowed(b.Word, allow)
		conf := b.Confidence / 100
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		frags = append(frags, ocr.Fragment{Region: b.Box, Text: text, Confidence: conf})
	}
	return frags
}

func hasLanguage(langs []string, want string) bool {
	// "eng+ind" style requests need every part installed
	for _, part := range strings.Split(want, "+") {
		found := false
		for _, l := range langs {
			if l == part {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
