// Package throttle enforces a minimum interval between upstream provider calls.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/ocr"
)

// Gate spaces calls at least minInterval apart. A nil Gate never blocks.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate. A non-positive interval disables throttling and returns nil.
func NewGate(minInterval time.Duration) *Gate {
	if minInterval <= 0 {
		return nil
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	return g.limiter.Wait(ctx)
}

type ocrClient struct {
	next ocr.Client
	gate *Gate
}

// OCR wraps an OCR client so every call passes through the gate
func OCR(next ocr.Client, gate *Gate) ocr.Client {
	if gate == nil {
		return next
	}
	return &ocrClient{next: next, gate: gate}
}

func (c *ocrClient) ExtractText(ctx context.Context, image []byte, mimeType string) (*ocr.Result, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, apperr.OCR("throttle.ocr", true, err)
	}
	return c.next.ExtractText(ctx, image, mimeType)
}

type extractor struct {
	extraction.Extractor
	gate *Gate
}

// Extractor wraps an extractor so every extraction passes through the gate.
// Availability checks are not throttled.
func Extractor(next extraction.Extractor, gate *Gate) extraction.Extractor {
	if gate == nil {
		return next
	}
	return &extractor{Extractor: next, gate: gate}
}

// Unwrap returns the gated extractor
func (e *extractor) Unwrap() extraction.Extractor {
	return e.Extractor
}

func (e *extractor) Extract(ctx context.Context, markdown string, schema document.Schema) (*extraction.Result, error) {
	if err := e.gate.Wait(ctx); err != nil {
		return nil, apperr.Extraction("throttle.extraction", true, err)
	}
	return e.Extractor.Extract(ctx, markdown, schema)
}
