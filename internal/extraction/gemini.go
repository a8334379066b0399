package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

const (
	geminiName              = "gemini"
	geminiDefaultConfidence = 0.9
	truncatedConfidenceCap  = 0.5
)

// GeminiConfig configures the Gemini extractor
type GeminiConfig struct {
	APIKey string
	Model  string
}

// generator is the subset of *genai.GenerativeModel used by Gemini
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	Info(ctx context.Context) (*genai.ModelInfo, error)
}

// Gemini implements Extractor using Google Gemini as a general LLM
type Gemini struct {
	client   *genai.Client
	model    string
	newModel func(schema *genai.Schema) generator
	log      *slog.Logger
}

// NewGemini creates a new Gemini extractor
func NewGemini(cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, apperr.Configuration("extraction.gemini", "gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g := &Gemini{
		client: client,
		model:  cfg.Model,
		log:    logger,
	}
	g.newModel = func(schema *genai.Schema) generator {
		m := client.GenerativeModel(cfg.Model)
		m.SetTemperature(0)
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = schema
		return m
	}
	return g, nil
}

// Name returns the provider name
func (g *Gemini) Name() string {
	return geminiName
}

// Available checks that the configured model can be reached
func (g *Gemini) Available(ctx context.Context) error {
	if _, err := g.newModel(nil).Info(ctx); err != nil {
		return classifyGemini("extraction.gemini.available", err)
	}
	return nil
}

// Extract asks Gemini for a JSON object matching the schema
func (g *Gemini) Extract(ctx context.Context, markdown string, schema document.Schema) (*Result, error) {
	start := time.Now()

	prompt, err := buildPrompt(markdown, schema)
	if err != nil {
		return nil, apperr.Extraction("extraction.gemini", false, err)
	}

	var responseSchema *genai.Schema
	if schema.Strict {
		responseSchema = toGenaiSchema(schema.Definition)
	}

	resp, err := g.newModel(responseSchema).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.log.Error("extraction.gemini.generate_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, classifyGemini("extraction.gemini", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, apperr.Extraction("extraction.gemini", true, errors.New("no response from gemini"))
	}
	candidate := resp.Candidates[0]

	// Extract text response
	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	obj, err := parseObject(responseText.String())
	if err != nil {
		return nil, apperr.Extraction("extraction.gemini", false, fmt.Errorf("parsing response: %w", err))
	}

	confidence := reportedConfidence(obj, geminiDefaultConfidence)
	if candidate.FinishReason != genai.FinishReasonStop && confidence > truncatedConfidenceCap {
		confidence = truncatedConfidenceCap
	}

	g.log.Info("extraction.gemini.ok",
		"schema", schema.Name,
		"model", g.model,
		"finish_reason", candidate.FinishReason.String(),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &Result{JSON: obj, Confidence: confidence, Provider: geminiName}, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func classifyGemini(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return apperr.Extraction(op, apperr.RetryableStatus(gerr.Code), err)
	}
	return apperr.Extraction(op, apperr.RetryableTransport(err), err)
}

// toGenaiSchema translates a JSON Schema definition into Gemini's response schema.
// Keywords Gemini does not understand (pattern, minimum, ...) are dropped.
func toGenaiSchema(def map[string]any) *genai.Schema {
	if def == nil {
		return nil
	}
	s := &genai.Schema{}

	switch t := def["type"].(type) {
	case string:
		s.Type = genaiType(t)
	case []any:
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = true
				continue
			}
			s.Type = genaiType(name)
		}
	}

	if desc, ok := def["description"].(string); ok {
		s.Description = desc
	}

	if values, ok := def["enum"].([]any); ok {
		for _, v := range values {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
		if len(s.Enum) > 0 {
			s.Format = "enum"
		}
	}

	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(pm)
			}
		}
	}

	if items, ok := def["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}

	switch req := def["required"].(type) {
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	case []string:
		s.Required = append(s.Required, req...)
	}

	return s
}

func genaiType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}
