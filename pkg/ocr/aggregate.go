package ocr

import (
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Aggregate concatenates fragment texts in the order the recognizer produced
// them and returns the unweighted mean of their confidences. An empty input
// yields ("", 0).
func Aggregate(frags []Fragment) (string, float64) {
	if len(frags) == 0 {
		return "", 0
	}
	var sb strings.Builder
	confs := make([]float64, 0, len(frags))
	for _, f := range frags {
		sb.WriteString(f.Text)
		confs = append(confs, f.Confidence)
	}
	return sb.String(), stat.Mean(confs, nil)
}
