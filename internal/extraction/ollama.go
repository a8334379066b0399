package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

const (
	ollamaName              = "ollama"
	ollamaDefaultConfidence = 0.75
)

// OllamaConfig configures the Ollama extractor
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama implements Extractor using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	log     *slog.Logger
}

// NewOllama creates a new Ollama extractor.
// Text models with structured output support work best, e.g. llama3.1 or qwen2.5.
func NewOllama(cfg OllamaConfig, logger *slog.Logger) (*Ollama, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second // local models can be slow on first load
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ollama{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger,
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Name returns the provider name
func (o *Ollama) Name() string {
	return ollamaName
}

// Available checks that the server is up and has the configured model pulled
func (o *Ollama) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return apperr.Extraction("extraction.ollama.available", false, fmt.Errorf("creating request: %w", err))
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return apperr.Extraction("extraction.ollama.available", apperr.RetryableTransport(err), fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.Extraction("extraction.ollama.available", apperr.RetryableStatus(resp.StatusCode),
			fmt.Errorf("ollama API error (status %d)", resp.StatusCode))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return apperr.Extraction("extraction.ollama.available", true, fmt.Errorf("decoding response: %w", err))
	}

	for _, m := range tags.Models {
		if o.matchesModel(m.Name) || o.matchesModel(m.Model) {
			return nil
		}
	}
	return apperr.Extraction("extraction.ollama.available", false, fmt.Errorf("model %q is not pulled", o.model))
}

func (o *Ollama) matchesModel(name string) bool {
	if name == "" {
		return false
	}
	if name == o.model {
		return true
	}
	// "llama3.1" matches "llama3.1:latest" and other tags unless a tag was configured
	return !strings.Contains(o.model, ":") && strings.HasPrefix(name, o.model+":")
}

// Extract asks Ollama for a JSON object matching the schema
func (o *Ollama) Extract(ctx context.Context, markdown string, schema document.Schema) (*Result, error) {
	start := time.Now()

	prompt, err := buildPrompt(markdown, schema)
	if err != nil {
		return nil, apperr.Extraction("extraction.ollama", false, err)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading OCR text of financial documents and extracting accurate structured data.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Options: map[string]any{"temperature": 0},
	}
	if schema.Strict {
		reqBody.Format = schema.Definition
	} else {
		reqBody.Format = "json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Extraction("extraction.ollama", false, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, apperr.Extraction("extraction.ollama", false, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.log.Error("extraction.ollama.request_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, apperr.Extraction("extraction.ollama", apperr.RetryableTransport(err), fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		o.log.Warn("extraction.ollama.bad_status", "status", resp.StatusCode, "body", string(body))
		return nil, apperr.Extraction("extraction.ollama", apperr.RetryableStatus(resp.StatusCode),
			fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, apperr.Extraction("extraction.ollama", true, fmt.Errorf("decoding response: %w", err))
	}
	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return nil, apperr.Extraction("extraction.ollama", true, errors.New("empty response from ollama"))
	}

	obj, err := parseObject(chatResp.Message.Content)
	if err != nil {
		return nil, apperr.Extraction("extraction.ollama", false, fmt.Errorf("parsing response: %w", err))
	}

	confidence := reportedConfidence(obj, ollamaDefaultConfidence)
	if chatResp.DoneReason == "length" && confidence > truncatedConfidenceCap {
		confidence = truncatedConfidenceCap
	}

	o.log.Info("extraction.ollama.ok",
		"schema", schema.Name,
		"model", o.model,
		"done_reason", chatResp.DoneReason,
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &Result{JSON: obj, Confidence: confidence, Provider: ollamaName}, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
