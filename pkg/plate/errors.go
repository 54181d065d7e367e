package plate

import "errors"

// ErrInvalidImage is returned when the payload is not a decodable image.
// It is a caller mistake, distinct from a run that finds no plate.
var ErrInvalidImage = errors.New("invalid image")

// ErrEmptyRegion is returned by ExtractRegion when clamping leaves nothing.
var ErrEmptyRegion = errors.New("empty region")

// ErrModelUnavailable is returned when a detector or recognizer cannot be
// initialized.
var ErrModelUnavailable = errors.New("model unavailable")
