package scanning

import (
	"context"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
)

// Service scans documents, building a fresh Scanner for every request
type Service struct {
	deps Deps
}

// NewService creates a new Service
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// ScanCheck extracts a check from an image
func (s *Service) ScanCheck(ctx context.Context, image []byte, mimeType string) (*Result[document.Check], error) {
	return New(s.deps, CheckKind).Scan(ctx, image, mimeType)
}

// ScanReceipt extracts a receipt from an image
func (s *Service) ScanReceipt(ctx context.Context, image []byte, mimeType string) (*Result[document.Receipt], error) {
	return New(s.deps, ReceiptKind).Scan(ctx, image, mimeType)
}

// Extractor returns the configured extractor
func (s *Service) Extractor() extraction.Extractor {
	return s.deps.Extractor
}
