// Package config reads docscan settings from flags and DOCSCAN_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/docscan/internal/apperr"
	"github.com/zombor/docscan/internal/confidence"
)

// EnvPrefix is prepended to every flag name to form its environment variable
const EnvPrefix = "DOCSCAN"

// Config holds every runtime setting
type Config struct {
	Port           int
	MaxUploadBytes int64
	MaxConcurrent  int64
	QueueTimeout   time.Duration
	LogLevel       string

	OCRURL     string
	OCRKey     string
	OCRModel   string
	OCRTimeout time.Duration

	Extractor         string
	Fallback          string
	GeminiKey         string
	GeminiModel       string
	OllamaURL         string
	OllamaModel       string
	ExtractionTimeout time.Duration

	MinInterval      time.Duration
	OCRWeight        float64
	ExtractionWeight float64

	ShowVersion bool

	fs    *ff.FlagSet
	flags flags
}

// flags holds the values bound to the flag set until Parse copies them out
type flags struct {
	port, maxUploadMB, maxConcurrent                    *int
	queueTimeout, ocrTimeout, extractionTimeout, minGap *time.Duration
	logLevel, ocrURL, ocrKey, ocrModel                  *string
	extractor, fallback, geminiKey, geminiModel         *string
	ollamaURL, ollamaModel                              *string
	ocrWeight, extractionWeight                         *float64
	showVersion                                         *bool
}

// New creates a Config with its flags registered
func New(name string) *Config {
	fs := ff.NewFlagSet(name)
	return &Config{fs: fs, flags: flags{
		port:          fs.IntLong("port", 8080, "HTTP server port"),
		maxUploadMB:   fs.IntLong("max-upload-mb", 20, "Largest accepted upload in megabytes"),
		maxConcurrent: fs.IntLong("max-concurrent", 4, "Scans processed at once; further requests queue"),
		queueTimeout:  fs.DurationLong("queue-timeout", 30*time.Second, "How long a request waits for a scan slot"),
		logLevel:      fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),

		ocrURL:     fs.StringLong("ocr-url", "https://api.mistral.ai", "Mistral OCR API base URL"),
		ocrKey:     fs.StringLong("ocr-key", "", "Mistral API key (or set MISTRAL_API_KEY env var)"),
		ocrModel:   fs.StringLong("ocr-model", "mistral-ocr-latest", "Mistral OCR model name"),
		ocrTimeout: fs.DurationLong("ocr-timeout", 60*time.Second, "Timeout for one OCR call"),

		extractor:         fs.StringLong("extractor", "gemini", "Primary extractor: 'gemini' or 'ollama'"),
		fallback:          fs.StringLong("fallback", "", "Extractor used when the primary fails (optional)"),
		geminiKey:         fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:       fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name"),
		ollamaURL:         fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:       fs.StringLong("ollama-model", "llama3.1", "Ollama model name"),
		extractionTimeout: fs.DurationLong("extraction-timeout", 120*time.Second, "Timeout for one extraction call"),

		minGap:           fs.DurationLong("min-interval", 0, "Minimum time between upstream calls (0 disables throttling)"),
		ocrWeight:        fs.Float64Long("ocr-weight", 0.5, "Weight of OCR confidence in the overall score"),
		extractionWeight: fs.Float64Long("extraction-weight", 0.5, "Weight of extraction confidence in the overall score"),

		showVersion: fs.BoolLong("version", "Show version information"),
	}}
}

// Parse reads flags and environment variables, then fills API keys from their
// conventional environment variables when unset
func (c *Config) Parse(args []string) error {
	if err := ff.Parse(c.fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	f := c.flags
	c.Port = *f.port
	c.MaxUploadBytes = int64(*f.maxUploadMB) << 20
	c.MaxConcurrent = int64(*f.maxConcurrent)
	c.QueueTimeout = *f.queueTimeout
	c.LogLevel = *f.logLevel
	c.OCRURL = *f.ocrURL
	c.OCRKey = *f.ocrKey
	c.OCRModel = *f.ocrModel
	c.OCRTimeout = *f.ocrTimeout
	c.Extractor = strings.ToLower(strings.TrimSpace(*f.extractor))
	c.Fallback = strings.ToLower(strings.TrimSpace(*f.fallback))
	c.GeminiKey = *f.geminiKey
	c.GeminiModel = *f.geminiModel
	c.OllamaURL = *f.ollamaURL
	c.OllamaModel = *f.ollamaModel
	c.ExtractionTimeout = *f.extractionTimeout
	c.MinInterval = *f.minGap
	c.OCRWeight = *f.ocrWeight
	c.ExtractionWeight = *f.extractionWeight
	c.ShowVersion = *f.showVersion

	if c.OCRKey == "" {
		c.OCRKey = os.Getenv("MISTRAL_API_KEY")
	}
	if c.GeminiKey == "" {
		c.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	return nil
}

// Usage returns the flag help text
func (c *Config) Usage() string {
	return fmt.Sprint(ffhelp.Flags(c.fs))
}

// Validate reports every invalid setting as one configuration error
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "max-upload-mb must be positive")
	}
	if c.MaxConcurrent <= 0 {
		problems = append(problems, "max-concurrent must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(c.OCRKey) == "" {
		problems = append(problems, "mistral api key is required (--ocr-key or MISTRAL_API_KEY)")
	}
	if c.Extractor == "" {
		problems = append(problems, "extractor is required")
	}
	if (c.Extractor == "gemini" || c.Fallback == "gemini") && strings.TrimSpace(c.GeminiKey) == "" {
		problems = append(problems, "gemini api key is required (--gemini-key or GEMINI_API_KEY)")
	}
	for name, d := range map[string]time.Duration{
		"ocr-timeout":        c.OCRTimeout,
		"extraction-timeout": c.ExtractionTimeout,
		"queue-timeout":      c.QueueTimeout,
		"min-interval":       c.MinInterval,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	if _, err := confidence.New(c.OCRWeight, c.ExtractionWeight); err != nil {
		problems = append(problems, "invalid confidence weights")
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return apperr.Configuration("config.validate", strings.Join(problems, "; "))
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
