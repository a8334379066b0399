// Package confidence combines per-stage confidence estimates into one score.
package confidence

import (
	"math"

	"github.com/zombor/docscan/internal/apperr"
)

// Calculator combines OCR and extraction confidence with fixed weights
type Calculator struct {
	ocrWeight        float64
	extractionWeight float64
}

// New creates a Calculator. Weights are normalized to sum to 1.
func New(ocrWeight, extractionWeight float64) (*Calculator, error) {
	if ocrWeight < 0 || extractionWeight < 0 || math.IsNaN(ocrWeight) || math.IsNaN(extractionWeight) {
		return nil, apperr.Configuration("confidence.new", "confidence weights must be non-negative")
	}
	sum := ocrWeight + extractionWeight
	if sum == 0 || math.IsInf(sum, 0) {
		return nil, apperr.Configuration("confidence.new", "confidence weights must have a positive finite sum")
	}
	return &Calculator{
		ocrWeight:        ocrWeight / sum,
		extractionWeight: extractionWeight / sum,
	}, nil
}

// Balanced weighs both stages equally
func Balanced() *Calculator {
	return &Calculator{ocrWeight: 0.5, extractionWeight: 0.5}
}

// Combine returns the weighted overall confidence, clamped to [0, 1] and
// rounded to two decimals.
func (c *Calculator) Combine(ocr, extraction float64) float64 {
	return Round(c.ocrWeight*Clamp(ocr) + c.extractionWeight*Clamp(extraction))
}

// Clamp bounds a confidence to [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Round clamps and rounds a confidence to two decimals
func Round(v float64) float64 {
	return Clamp(math.Round(Clamp(v)*100) / 100)
}
