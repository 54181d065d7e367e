// Package detector holds plate.Detector implementations that do not need a
// cloud SDK.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/disintegration/imaging"

	"ecoscout/pkg/plate"
)

// Remote sends images to an HTTP inference service (a YOLO model behind a
// small web server) and reads back bounding boxes.
type Remote struct {
	inferenceURL  string
	minConfidence float64
	client        *http.Client
}

// NewRemote returns a detector posting to inferenceURL. Boxes scored below
// minConfidence are dropped.
func NewRemote(inferenceURL string, minConfidence float64, timeout time.Duration) *Remote {
	return &Remote{
		inferenceURL:  inferenceURL,
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

type remoteBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

// Detect implements plate.Detector. Boxes keep the order the service
// returned them in.
func (r *Remote) Detect(ctx context.Context, img image.Image) ([]plate.BoundingBox, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Detections []remoteBox `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	boxes := make([]plate.BoundingBox, 0, len(result.Detections))
	for _, d := range result.Detections {
		if d.Confidence < r.minConfidence {
			continue
		}
		boxes = append(boxes, plate.BoundingBox{
			X1: int(d.X1), Y1: int(d.Y1), X2: int(d.X2), Y2: int(d.Y2),
			Confidence: d.Confidence,
			Label:      d.Class,
		})
	}
	return boxes, nil
}

// CheckHealth queries the health endpoint that sits next to the inference
// route: http://host/api/predict is checked at http://host/api/health.
func (r *Remote) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(r.inferenceURL)
	if err != nil {
		return fmt.Errorf("%w: bad inference url: %v", plate.ErrModelUnavailable, err)
	}
	u.Path = healthPath(u.Path)
	u.RawQuery = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", plate.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: inference service unhealthy: %d", plate.ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

func healthPath(inference string) string {
	return path.Join("/", path.Dir(inference), "health")
}
