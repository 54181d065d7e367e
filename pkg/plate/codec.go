package plate

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/webp"
)

// PreviewPrefix is prepended to base64 preview images so browsers can use
// them directly as an <img> source.
const PreviewPrefix = "data:image/jpeg;base64,"

const previewQuality = 90

// DecodeImage decodes a compressed image buffer. Anything that does not sniff
// as an image, or fails to decode, is reported as ErrInvalidImage.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: payload is %s", ErrInvalidImage, mt.String())
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero sized image", ErrInvalidImage)
	}
	return img, nil
}

// EncodePreview encodes img as JPEG and returns it as a base64 data URI.
func EncodePreview(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return PreviewPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodePreview reverses EncodePreview. The data URI prefix is optional.
func DecodePreview(s string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, PreviewPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return DecodeImage(raw)
}
