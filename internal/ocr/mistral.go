package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/zombor/docscan/internal/apperr"
)

const pageSeparator = "\n\n-----\n\n"

// Result is the text read from an image
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pages      int     `json:"pages"`
	Model      string  `json:"model,omitempty"`
}

// Client defines the interface for OCR operations
type Client interface {
	// ExtractText reads the text of an image or PDF and estimates how reliable it is
	ExtractText(ctx context.Context, image []byte, mimeType string) (*Result, error)
}

// MistralConfig configures the Mistral OCR client
type MistralConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Mistral implements Client using the Mistral OCR API
type Mistral struct {
	cfg    MistralConfig
	client *http.Client
	log    *slog.Logger
}

// NewMistral creates a new Mistral OCR client
func NewMistral(cfg MistralConfig, logger *slog.Logger) (*Mistral, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.Configuration("ocr.new", "mistral api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-ocr-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Mistral{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger,
	}, nil
}

type ocrDocument struct {
	Type        string `json:"type"`
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
	Model string    `json:"model"`
}

// ExtractText sends the image to Mistral OCR and returns the combined page markdown
func (m *Mistral) ExtractText(ctx context.Context, image []byte, mimeType string) (*Result, error) {
	mimeType = NormalizeMIMEType(mimeType)
	if !Supported(mimeType) {
		return nil, apperr.OCR("ocr.extract", false, fmt.Errorf("unsupported media type %q", mimeType))
	}
	if len(image) == 0 {
		return nil, apperr.OCR("ocr.extract", false, errors.New("empty image"))
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	doc := ocrDocument{Type: "image_url", ImageURL: dataURL}
	if mimeType == "application/pdf" {
		doc = ocrDocument{Type: "document_url", DocumentURL: dataURL}
	}

	body, err := json.Marshal(ocrRequest{Model: m.cfg.Model, Document: doc})
	if err != nil {
		return nil, apperr.OCR("ocr.extract", false, fmt.Errorf("marshaling request: %w", err))
	}

	url := strings.TrimRight(m.cfg.BaseURL, "/") + "/v1/ocr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.OCR("ocr.extract", false, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Error("ocr.request_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, apperr.OCR("ocr.extract", apperr.RetryableTransport(err), fmt.Errorf("calling mistral ocr: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		m.log.Error("ocr.bad_status", "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, apperr.OCR("ocr.extract", apperr.RetryableStatus(resp.StatusCode),
			fmt.Errorf("mistral ocr error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(slurp))))
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.OCR("ocr.extract", false, fmt.Errorf("decoding response: %w", err))
	}

	text, pages := combinePages(parsed.Pages)
	if pages == 0 {
		return nil, apperr.OCR("ocr.extract", false, errors.New("no content extracted from image"))
	}

	result := &Result{
		Text:       text,
		Confidence: Confidence(text),
		Pages:      pages,
		Model:      parsed.Model,
	}

	m.log.Info("ocr.ok",
		"pages", result.Pages,
		"text_len", len(result.Text),
		"confidence", result.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// combinePages joins non-empty page markdown in page order
func combinePages(pages []ocrPage) (string, int) {
	sorted := make([]ocrPage, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var parts []string
	for _, p := range sorted {
		md := strings.TrimSpace(p.Markdown)
		if md == "" || md == "." {
			continue
		}
		parts = append(parts, md)
	}
	if len(parts) == 0 {
		return "", 0
	}
	return CleanText(strings.Join(parts, pageSeparator)), len(parts)
}

var supportedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"image/tiff":      true,
	"image/avif":      true,
	"application/pdf": true,
}

// NormalizeMIMEType lowercases a content type and drops any parameters
func NormalizeMIMEType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// Supported reports whether the OCR provider accepts the given content type
func Supported(mimeType string) bool {
	return supportedTypes[NormalizeMIMEType(mimeType)]
}
