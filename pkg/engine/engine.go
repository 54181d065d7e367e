// Package engine wires configured backends into a plate.Pipeline.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"

	"ecoscout/pkg/config"
	"ecoscout/pkg/detector"
	"ecoscout/pkg/ocr/tesseract"
	"ecoscout/pkg/plate"
	rek "ecoscout/pkg/rekognition"
)

// Engine is the assembled pipeline plus the names of its backends.
type Engine struct {
	Pipeline       *plate.Pipeline
	DetectorName   string
	RecognizerName string
}

type named interface {
	Name() string
}

type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Builders construct backends. Tests replace them to avoid cgo and AWS.
type Builders struct {
	Rekognition func(ctx context.Context, region string) (*rekognition.Client, error)
	Tesseract   func(lang string) (plate.Recognizer, error)
}

// DefaultBuilders uses the real AWS and Tesseract constructors.
func DefaultBuilders() Builders {
	return Builders{
		Rekognition: rek.NewClient,
		Tesseract: func(lang string) (plate.Recognizer, error) {
			return tesseract.New(lang)
		},
	}
}

// Build creates the detector and recognizer named by cfg. Any failure wraps
// plate.ErrModelUnavailable or reports an unknown backend; callers are
// expected to stop rather than serve without models.
func Build(ctx context.Context, cfg *config.Config, b Builders) (*Engine, error) {
	var client *rekognition.Client
	rekClient := func() (*rekognition.Client, error) {
		if client != nil {
			return client, nil
		}
		c, err := b.Rekognition(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		client = c
		return c, nil
	}

	var det plate.Detector
	switch cfg.DetectorBackend {
	case "remote":
		r := detector.NewRemote(cfg.DetectorURL, cfg.DetectorMinConfidence, cfg.DetectorTimeout)
		det = r
	case "rekognition":
		c, err := rekClient()
		if err != nil {
			return nil, err
		}
		det = rek.NewLabelDetector(c, cfg.PlateLabel)
	case "fullframe":
		det = detector.FullFrame{}
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}

	var recog plate.Recognizer
	switch cfg.RecognizerBackend {
	case "tesseract":
		r, err := b.Tesseract(cfg.TesseractLang)
		if err != nil {
			return nil, err
		}
		recog = r
	case "rekognition":
		c, err := rekClient()
		if err != nil {
			return nil, err
		}
		recog = rek.NewTextRecognizer(c)
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.RecognizerBackend)
	}

	if hc, ok := det.(healthChecker); ok {
		if err := hc.CheckHealth(ctx); err != nil {
			return nil, fmt.Errorf("detector health: %w", err)
		}
	}

	e := &Engine{
		Pipeline:       plate.New(det, recog, plate.WithAnnotateMode(cfg.AnnotateMode)),
		DetectorName:   nameOf(det),
		RecognizerName: nameOf(recog),
	}
	log.Printf("ENGINE detector=%s recognizer=%s", e.DetectorName, e.RecognizerName)
	return e, nil
}

func nameOf(v any) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
