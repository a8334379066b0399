package extraction

import (
	"context"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/document"
)

func TestExtraction(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extraction Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockExtractor is a scripted Extractor for testing
type mockExtractor struct {
	name         string
	availableErr error
	result       *Result
	err          error
	calls        int
	closed       bool
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) Available(ctx context.Context) error { return m.availableErr }

func (m *mockExtractor) Extract(ctx context.Context, markdown string, schema document.Schema) (*Result, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockExtractor) Close() error {
	m.closed = true
	return nil
}
