package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zombor/docscan/internal/document"
)

// maxPromptChars bounds how much OCR markdown is sent to a provider
const maxPromptChars = 12000

// Result is the structured data returned by an extractor
type Result struct {
	JSON       map[string]any
	Confidence float64
	Provider   string
}

// Extractor defines the interface for schema-guided JSON extraction
type Extractor interface {
	// Name identifies the provider
	Name() string
	// Available checks whether the provider can currently serve requests
	Available(ctx context.Context) error
	// Extract reads OCR markdown and returns JSON shaped by the schema
	Extract(ctx context.Context, markdown string, schema document.Schema) (*Result, error)
	// Close releases provider resources
	Close() error
}

// extractionInstructions is shared by all providers
const extractionInstructions = `You are a document data extraction engine. You receive the OCR text (markdown) of a single scanned document and must return ONE JSON object describing it.

Rules:
- Return ONLY a JSON object that matches the JSON Schema below. No prose, no markdown code blocks.
- Only use information that is visible in the OCR text. Never invent names, numbers, dates or amounts.
- If a field is not present in the text, use null for it.
- Dates use ISO 8601 (YYYY-MM-DD); timestamps use YYYY-MM-DDTHH:MM:SS when a time is printed.
- Money amounts are decimal strings without currency symbols or thousands separators, e.g. "1234.56".
- Currency codes are 3-letter ISO 4217 codes.
- Add a "confidence" number between 0 and 1 expressing how sure you are that the values were read correctly.`

// buildPrompt combines the shared instructions, the schema and the OCR text
func buildPrompt(markdown string, schema document.Schema) (string, error) {
	def, err := json.MarshalIndent(schema.Definition, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}

	text := strings.TrimSpace(markdown)
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars] + "\n…(truncated)"
	}

	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\n\nDocument type: ")
	b.WriteString(schema.Name)
	if schema.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(schema.Description)
	}
	b.WriteString("\n\nJSON Schema:\n")
	b.Write(def)
	b.WriteString("\n\nOCR text:\n")
	b.WriteString(text)
	return b.String(), nil
}

// parseObject extracts the JSON object from a model response
func parseObject(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, errors.New("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, errors.New("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if obj == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return obj, nil
}

// reportedConfidence returns the model's own confidence when it is a valid probability
func reportedConfidence(obj map[string]any, fallback float64) float64 {
	if v, ok := obj["confidence"].(float64); ok && v >= 0 && v <= 1 {
		return v
	}
	return fallback
}
