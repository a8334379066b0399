package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/docscan/internal/config"
	"github.com/zombor/docscan/internal/confidence"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extraction"
	"github.com/zombor/docscan/internal/metrics"
	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/scanning"
	"github.com/zombor/docscan/internal/server"
	"github.com/zombor/docscan/internal/throttle"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	cfg := config.New("docscan")
	if err := cfg.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cfg.Usage())
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := slog.Default()
	gate := throttle.NewGate(cfg.MinInterval)

	// Initialize OCR client
	slog.Info("Initializing OCR client...", "url", cfg.OCRURL, "model", cfg.OCRModel)
	mistral, err := ocr.NewMistral(ocr.MistralConfig{
		BaseURL: cfg.OCRURL,
		APIKey:  cfg.OCRKey,
		Model:   cfg.OCRModel,
		Timeout: cfg.OCRTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing ocr: %w", err)
	}

	// Initialize extractor based on type
	slog.Info("Initializing extractor...", "primary", cfg.Extractor, "fallback", cfg.Fallback)
	factory := extraction.NewFactory(extraction.FactoryConfig{
		Primary:  cfg.Extractor,
		Fallback: cfg.Fallback,
		Gemini:   extraction.GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel},
		Ollama:   extraction.OllamaConfig{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel, Timeout: cfg.ExtractionTimeout},
	}, logger)
	extractor, err := factory.Build()
	if err != nil {
		return fmt.Errorf("initializing extractor: %w", err)
	}
	defer extractor.Close()

	validator, err := extraction.NewValidator(document.CheckSchema(), document.ReceiptSchema())
	if err != nil {
		return fmt.Errorf("compiling schemas: %w", err)
	}

	calculator, err := confidence.New(cfg.OCRWeight, cfg.ExtractionWeight)
	if err != nil {
		return fmt.Errorf("initializing confidence: %w", err)
	}

	reg := metrics.New()

	// Initialize service
	service := scanning.NewService(scanning.Deps{
		OCR:               throttle.OCR(mistral, gate),
		Extractor:         throttle.Extractor(extractor, gate),
		Validator:         validator,
		Calculator:        calculator,
		Metrics:           reg,
		Logger:            logger,
		OCRTimeout:        cfg.OCRTimeout,
		ExtractionTimeout: cfg.ExtractionTimeout,
	})

	// Initialize server
	srv := server.NewServer(service, reg, server.Options{
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxConcurrent:  cfg.MaxConcurrent,
		QueueTimeout:   cfg.QueueTimeout,
	}, logger)

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost:%d", cfg.Port), "version", version)
	if err := srv.Start(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return err
	}

	slog.Info("Shutting down...")
	return nil
}
