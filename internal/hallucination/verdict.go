// Package hallucination scores extracted documents against patterns typical of
// generative fabrication. Detectors are pure: they return a Verdict that the
// caller applies to the document.
package hallucination

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Threshold is the suspicion score at which a document is flagged
	Threshold = 2
	// MaxFlaggedConfidence caps the confidence of a flagged document
	MaxFlaggedConfidence = 0.3
)

// Verdict is the outcome of a detection pass
type Verdict struct {
	IsValidInput bool
	Confidence   float64
	Score        int
	Signals      []string
}

// Flagged reports whether the score reached the threshold
func (v Verdict) Flagged() bool {
	return v.Score >= Threshold
}

// Apply writes the verdict into a document's validity flag and confidence
func (v Verdict) Apply(isValid *bool, confidence *float64) {
	if isValid != nil {
		*isValid = v.IsValidInput
	}
	if confidence != nil {
		*confidence = v.Confidence
	}
}

// scorer accumulates signal hits
type scorer struct {
	score   int
	signals []string
}

func (s *scorer) hit(signal string, weight int) {
	s.score += weight
	s.signals = append(s.signals, signal)
}

// verdict applies the decision rule. A document that was already invalid stays invalid.
func (s *scorer) verdict(isValid bool, confidence float64) Verdict {
	if confidence < 0 || math.IsNaN(confidence) {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	v := Verdict{
		IsValidInput: isValid,
		Confidence:   confidence,
		Score:        s.score,
		Signals:      s.signals,
	}
	if v.Flagged() {
		v.IsValidInput = false
		if v.Confidence > MaxFlaggedConfidence {
			v.Confidence = MaxFlaggedConfidence
		}
	}
	return v
}

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[strings.ToLower(v)] = struct{}{}
	}
	return m
}

func in(m map[string]struct{}, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	_, ok := m[value]
	return ok
}

func amounts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

// amountIn compares a decimal string numerically against a list of amounts
func amountIn(list []decimal.Decimal, value string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	for _, a := range list {
		if d.Equal(a) {
			return true
		}
	}
	return false
}
