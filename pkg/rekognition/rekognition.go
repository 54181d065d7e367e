// Package rekognition adapts AWS Rekognition to plate.Detector and
// plate.Recognizer.
package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"

	"ecoscout/pkg/ocr"
	"ecoscout/pkg/plate"
)

// DefaultPlateLabel is the Rekognition label for license plates.
const DefaultPlateLabel = "License Plate"

// TextAPI is the subset of the Rekognition client used for text reading.
type TextAPI interface {
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// LabelAPI is the subset of the Rekognition client used for plate location.
type LabelAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// NewClient loads the default AWS configuration for region and returns a
// Rekognition client.
func NewClient(ctx context.Context, region string) (*rekognition.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", plate.ErrModelUnavailable, err)
	}
	return rekognition.NewFromConfig(cfg), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ratioRect converts a Rekognition ratio box to pixels inside a w x h image.
func ratioRect(bb *types.BoundingBox, w, h int) image.Rectangle {
	if bb == nil {
		return image.Rectangle{}
	}
	left := float64(aws.ToFloat32(bb.Left))
	top := float64(aws.ToFloat32(bb.Top))
	width := float64(aws.ToFloat32(bb.Width))
	height := float64(aws.ToFloat32(bb.Height))
	return image.Rect(
		int(left*float64(w)),
		int(top*float64(h)),
		int((left+width)*float64(w)),
		int((top+height)*float64(h)),
	)
}

// TextRecognizer reads plate text with DetectText.
type TextRecognizer struct {
	api TextAPI
}

func NewTextRecognizer(api TextAPI) *TextRecognizer {
	return &TextRecognizer{api: api}
}

func (r *TextRecognizer) Name() string { return "rekognition" }

// Recognize implements plate.Recognizer. Only WORD detections are used unless
// line detail is requested, so words never merge into paragraphs.
func (r *TextRecognizer) Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Fragment, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	out, err := r.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect text: %w", err)
	}

	want := types.TextTypesWord
	if opts.Detail == ocr.DetailLine {
		want = types.TextTypesLine
	}
	b := img.Bounds()
	var frags []ocr.Fragment
	for _, td := range out.TextDetections {
		if td.Type != want {
			continue
		}
		raw := aws.ToString(td.DetectedText)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		// kept even when nothing survives the allowlist
		text := ocr.FilterAllowed(strings.ToUpper(raw), opts.Allowlist)
		var region image.Rectangle
		if td.Geometry != nil {
			region = ratioRect(td.Geometry.BoundingBox, b.Dx(), b.Dy())
		}
		frags = append(frags, ocr.Fragment{
			Region:     region,
			Text:       text,
			Confidence: clampUnit(float64(aws.ToFloat32(td.Confidence)) / 100),
		})
	}
	return frags, nil
}

// LabelDetector locates plates with DetectLabels.
type LabelDetector struct {
	api   LabelAPI
	label string
}

// NewLabelDetector keeps instances whose label matches label
// case-insensitively. An empty label means DefaultPlateLabel.
func NewLabelDetector(api LabelAPI, label string) *LabelDetector {
	if label == "" {
		label = DefaultPlateLabel
	}
	return &LabelDetector{api: api, label: label}
}

func (d *LabelDetector) Name() string { return "rekognition" }

// Detect implements plate.Detector.
func (d *LabelDetector) Detect(ctx context.Context, img image.Image) ([]plate.BoundingBox, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	out, err := d.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: &types.Image{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect labels: %w", err)
	}

	b := img.Bounds()
	var boxes []plate.BoundingBox
	for _, l := range out.Labels {
		name := aws.ToString(l.Name)
		if !strings.EqualFold(name, d.label) {
			continue
		}
		for _, inst := range l.Instances {
			r := ratioRect(inst.BoundingBox, b.Dx(), b.Dy())
			boxes = append(boxes, plate.BoundingBox{
				X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y,
				Confidence: clampUnit(float64(aws.ToFloat32(inst.Confidence)) / 100),
				Label:      name,
			})
		}
	}
	log.Printf("REKOGNITION labels=%d plates=%d", len(out.Labels), len(boxes))
	return boxes, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
