package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/document"
)

// Constructor builds a named extractor
type Constructor func() (Extractor, error)

// FactoryConfig selects and configures the extraction providers
type FactoryConfig struct {
	Primary  string
	Fallback string
	Gemini   GeminiConfig
	Ollama   OllamaConfig
}

// Factory creates extractors by provider name
type Factory struct {
	cfg   FactoryConfig
	ctors map[string]Constructor
	log   *slog.Logger
}

// NewFactory creates a factory with the built-in providers registered
func NewFactory(cfg FactoryConfig, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		cfg:   cfg,
		ctors: make(map[string]Constructor),
		log:   logger,
	}
	f.Register(geminiName, func() (Extractor, error) {
		return NewGemini(cfg.Gemini, logger)
	})
	f.Register(ollamaName, func() (Extractor, error) {
		return NewOllama(cfg.Ollama, logger)
	})
	return f
}

// Register adds or replaces a provider constructor
func (f *Factory) Register(name string, ctor Constructor) {
	f.ctors[strings.ToLower(name)] = ctor
}

// Names lists the registered providers
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.ctors))
	for name := range f.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the named provider
func (f *Factory) Create(name string) (Extractor, error) {
	ctor, ok := f.ctors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperr.Configuration("extraction.factory",
			fmt.Sprintf("unknown extraction provider %q (known: %s)", name, strings.Join(f.Names(), ", ")))
	}
	e, err := ctor()
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Configuration("extraction.factory", fmt.Sprintf("creating %s: %v", name, err))
	}
	return e, nil
}

// Build creates the configured primary provider, wrapped in a Fallback when a
// distinct fallback provider is configured.
func (f *Factory) Build() (Extractor, error) {
	if strings.TrimSpace(f.cfg.Primary) == "" {
		return nil, apperr.Configuration("extraction.factory", "an extraction provider is required")
	}
	primary, err := f.Create(f.cfg.Primary)
	if err != nil {
		return nil, err
	}

	if f.cfg.Fallback == "" || strings.EqualFold(f.cfg.Fallback, f.cfg.Primary) {
		return primary, nil
	}

	secondary, err := f.Create(f.cfg.Fallback)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return NewFallback(primary, secondary, f.log), nil
}

// Fallback tries the primary extractor and switches to the secondary when the
// primary is unavailable or fails.
type Fallback struct {
	primary   Extractor
	secondary Extractor
	log       *slog.Logger
}

// NewFallback composes two extractors
func NewFallback(primary, secondary Extractor, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, log: logger}
}

// Name returns both provider names
func (f *Fallback) Name() string {
	return f.primary.Name() + "|" + f.secondary.Name()
}

// Providers returns the primary and secondary extractors in order
func (f *Fallback) Providers() []Extractor {
	return []Extractor{f.primary, f.secondary}
}

// Providers lists the concrete providers behind e, looking through wrappers
// and fallback pairs
func Providers(e Extractor) []Extractor {
	switch v := e.(type) {
	case nil:
		return nil
	case interface{ Providers() []Extractor }:
		var out []Extractor
		for _, p := range v.Providers() {
			out = append(out, Providers(p)...)
		}
		return out
	case interface{ Unwrap() Extractor }:
		return Providers(v.Unwrap())
	}
	return []Extractor{e}
}

// Available succeeds when either provider is available
func (f *Fallback) Available(ctx context.Context) error {
	perr := f.primary.Available(ctx)
	if perr == nil {
		return nil
	}
	serr := f.secondary.Available(ctx)
	if serr == nil {
		return nil
	}
	return apperr.Extraction("extraction.fallback.available",
		apperr.IsRetryable(perr) && apperr.IsRetryable(serr), errors.Join(perr, serr))
}

// Extract runs the primary and falls back to the secondary on failure
func (f *Fallback) Extract(ctx context.Context, markdown string, schema document.Schema) (*Result, error) {
	var errs []error
	retryable := true

	for _, e := range []Extractor{f.primary, f.secondary} {
		if err := e.Available(ctx); err != nil {
			f.log.Warn("extraction.fallback.unavailable", "provider", e.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s unavailable: %w", e.Name(), err))
			retryable = retryable && apperr.IsRetryable(err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		res, err := e.Extract(ctx, markdown, schema)
		if err == nil {
			return res, nil
		}
		f.log.Warn("extraction.fallback.failed", "provider", e.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		retryable = retryable && apperr.IsRetryable(err)
		if ctx.Err() != nil {
			break
		}
	}

	return nil, apperr.Extraction("extraction.fallback", retryable, errors.Join(errs...))
}

// Close closes both providers
func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
