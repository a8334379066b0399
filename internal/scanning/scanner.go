package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/confidence"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/hallucination"
	"github.com/zombor/docscan/internal/metrics"
	"github.com/zombor/docscan/internal/normalize"
	"github.com/zombor/docscan/internal/ocr"
)

// State is the lifecycle position of a Scanner
type State int

const (
	StateIdle State = iota
	StateOCRInFlight
	StateExtractionInFlight
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOCRInFlight:
		return "ocr_in_flight"
	case StateExtractionInFlight:
		return "extraction_in_flight"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrNotIdle is returned when Scan is called on a scanner that has already run
var ErrNotIdle = errors.New("scanner has already been used")

// Validator checks normalized data against a named schema
type Validator interface {
	Validate(schemaName string, data map[string]any) error
}

// Deps are the collaborators shared by every scan
type Deps struct {
	OCR               ocr.Client
	Extractor         extraction.Extractor
	Validator         Validator
	Calculator        *confidence.Calculator
	Metrics           *metrics.Registry
	Logger            *slog.Logger
	OCRTimeout        time.Duration
	ExtractionTimeout time.Duration
}

// Kind describes how one document type flows through the pipeline
type Kind[T any] struct {
	Name      string
	Schema    document.Schema
	Normalize func(map[string]any) map[string]any
	Detect    func(*T) hallucination.Verdict
	// Fields exposes the document's validity flag and confidence
	Fields func(*T) (isValid *bool, confidence *float64)
}

// CheckKind scans bank checks
var CheckKind = Kind[document.Check]{
	Name:      "check",
	Schema:    document.CheckSchema(),
	Normalize: normalize.Check,
	Detect:    hallucination.Check,
	Fields: func(c *document.Check) (*bool, *float64) {
		return &c.IsValidInput, &c.Confidence
	},
}

// ReceiptKind scans purchase receipts
var ReceiptKind = Kind[document.Receipt]{
	Name:      "receipt",
	Schema:    document.ReceiptSchema(),
	Normalize: normalize.Receipt,
	Detect:    hallucination.Receipt,
	Fields: func(r *document.Receipt) (*bool, *float64) {
		return &r.IsValidInput, &r.Confidence
	},
}

// Confidence reports per-stage and overall confidence
type Confidence struct {
	OCR        float64 `json:"ocr"`
	Extraction float64 `json:"extraction"`
	Overall    float64 `json:"overall"`
}

// Result is the outcome of a successful scan
type Result[T any] struct {
	Data       *T
	Confidence Confidence
	Signals    []string
	Provider   string
}

// Scanner runs a single document through OCR, extraction, normalization,
// validation, hallucination detection and confidence scoring. A Scanner
// performs exactly one scan and never retries.
type Scanner[T any] struct {
	deps  Deps
	kind  Kind[T]
	state State
	err   error
	log   *slog.Logger
}

// New creates an idle scanner
func New[T any](deps Deps, kind Kind[T]) *Scanner[T] {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Calculator == nil {
		deps.Calculator = confidence.Balanced()
	}
	return &Scanner[T]{
		deps: deps,
		kind: kind,
		log:  logger.With("document", kind.Name),
	}
}

// State returns the current state
func (s *Scanner[T]) State() State {
	return s.state
}

// Err returns the error that moved the scanner to StateFailed
func (s *Scanner[T]) Err() error {
	return s.err
}

// Scan processes one document image
func (s *Scanner[T]) Scan(ctx context.Context, image []byte, mimeType string) (*Result[T], error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("scanning %s in state %s: %w", s.kind.Name, s.state, ErrNotIdle)
	}
	log := s.logger(ctx)
	defer s.deps.Metrics.TrackInFlight()()

	s.state = StateOCRInFlight
	text, err := s.runOCR(ctx, image, mimeType)
	if err != nil {
		return nil, s.fail(log, err)
	}

	s.state = StateExtractionInFlight
	extracted, err := s.runExtraction(ctx, text.Text)
	if err != nil {
		return nil, s.fail(log, err)
	}

	normalized := s.kind.Normalize(extracted.JSON)
	// validity and overall confidence are assigned here, never taken from the model
	delete(normalized, "isValidInput")

	if s.deps.Validator != nil {
		if err := s.deps.Validator.Validate(s.kind.Schema.Name, normalized); err != nil {
			return nil, s.fail(log, err)
		}
	}

	data, err := decode[T](normalized)
	if err != nil {
		return nil, s.fail(log, err)
	}

	isValid, conf := s.kind.Fields(data)
	*isValid = true
	*conf = confidence.Clamp(extracted.Confidence)

	verdict := s.kind.Detect(data)
	verdict.Apply(isValid, conf)

	overall := s.deps.Calculator.Combine(text.Confidence, verdict.Confidence)
	if verdict.Flagged() && overall > hallucination.MaxFlaggedConfidence {
		overall = hallucination.MaxFlaggedConfidence
	}
	*conf = overall

	result := &Result[T]{
		Data: data,
		Confidence: Confidence{
			OCR:        confidence.Round(text.Confidence),
			Extraction: confidence.Round(verdict.Confidence),
			Overall:    overall,
		},
		Signals:  verdict.Signals,
		Provider: extracted.Provider,
	}

	outcome := metrics.OutcomeOK
	if verdict.Flagged() {
		outcome = metrics.OutcomeFlagged
		s.deps.Metrics.Flagged(s.kind.Name)
		log.Warn("scan.flagged", "score", verdict.Score, "signals", verdict.Signals)
	}
	s.deps.Metrics.ScanFinished(s.kind.Name, outcome)
	s.deps.Metrics.ObserveConfidence(s.kind.Name, overall)

	s.state = StateDone
	log.Info("scan.ok",
		"provider", extracted.Provider,
		"ocr_confidence", result.Confidence.OCR,
		"extraction_confidence", result.Confidence.Extraction,
		"overall_confidence", overall,
		"valid_input", *isValid,
	)
	return result, nil
}

func (s *Scanner[T]) runOCR(ctx context.Context, image []byte, mimeType string) (*ocr.Result, error) {
	ctx, cancel := withTimeout(ctx, s.deps.OCRTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.deps.OCR.ExtractText(ctx, image, mimeType)
	s.deps.Metrics.ObserveStage(s.kind.Name, "ocr", time.Since(start))
	if err != nil {
		if apperr.IsKind(err, apperr.KindOCR) {
			return nil, err
		}
		return nil, apperr.OCR("scan.ocr", apperr.RetryableTransport(err), err)
	}
	if res == nil {
		return nil, apperr.OCR("scan.ocr", false, errors.New("no OCR result"))
	}
	return res, nil
}

func (s *Scanner[T]) runExtraction(ctx context.Context, text string) (*extraction.Result, error) {
	ctx, cancel := withTimeout(ctx, s.deps.ExtractionTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.deps.Extractor.Extract(ctx, text, s.kind.Schema)
	s.deps.Metrics.ObserveStage(s.kind.Name, "extraction", time.Since(start))
	if err != nil {
		if apperr.IsKind(err, apperr.KindExtraction) {
			return nil, err
		}
		return nil, apperr.Extraction("scan.extraction", apperr.RetryableTransport(err), err)
	}
	if res == nil || res.JSON == nil {
		return nil, apperr.Extraction("scan.extraction", false, errors.New("no extraction result"))
	}
	return res, nil
}

func (s *Scanner[T]) fail(log *slog.Logger, err error) error {
	log.Error("scan.failed", "state", s.state.String(), "error", err, "retryable", apperr.IsRetryable(err))
	s.state = StateFailed
	s.err = err
	s.deps.Metrics.ScanFinished(s.kind.Name, metrics.OutcomeError)
	return err
}

// decode converts normalized JSON into the typed document
func decode[T any](data map[string]any) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apperr.Validation("scan.decode", []apperr.Issue{{Path: "/", Code: "encoding", Message: err.Error()}})
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		issue := apperr.Issue{Path: "/", Code: "type", Message: err.Error()}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			issue.Path = "/" + strings.ReplaceAll(typeErr.Field, ".", "/")
		}
		return nil, apperr.Validation("scan.decode", []apperr.Issue{issue})
	}
	return &out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
