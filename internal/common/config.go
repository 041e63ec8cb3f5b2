package common

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Engine EngineConfig
	OCR    OCRConfig
	Log    LogConfig

	// environment values that did not parse; reported by Validate
	envErrors []ValidationError
}

// EngineConfig holds verification engine configuration
type EngineConfig struct {
	RulesFile           string
	DefaultRuleSet      string
	AcceptanceThreshold float64
	AmbiguityMargin     float64
	ItemTimeout         time.Duration
	MaxConcurrency      int
	OCRRate             float64 // calls per second, 0 = unlimited
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Backend        string
	Tesseract      string
	Lang           string
	TessdataDir    string
	PSM            int
	OEM            int
	Granularity    string
	MaxImageBytes  int64
	MaxImagePixels int
	MaxDimension   int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// OCR backends
const (
	BackendTesseractCLI = "tesseract-cli"
	BackendGosseract    = "gosseract"
	BackendVision       = "vision"
)

// LoadConfig loads configuration from environment variables. A malformed
// value falls back to its default and is reported by Validate.
func LoadConfig() *Config {
	env := &envReader{}
	cfg := &Config{
		Engine: EngineConfig{
			RulesFile:           env.get("LABEL_RULES_FILE", ""),
			DefaultRuleSet:      env.get("LABEL_DEFAULT_RULE_SET", "ttb"),
			AcceptanceThreshold: env.getFloat64("LABEL_ACCEPT_THRESHOLD", 0.6),
			AmbiguityMargin:     env.getFloat64("LABEL_AMBIGUITY_MARGIN", 0.1),
			ItemTimeout:         env.getDuration("LABEL_ITEM_TIMEOUT", 30*time.Second),
			MaxConcurrency:      env.getInt("LABEL_MAX_CONCURRENCY", runtime.NumCPU()),
			OCRRate:             env.getFloat64("LABEL_OCR_RATE", 0),
		},
		OCR: OCRConfig{
			Backend:        env.get("OCR_BACKEND", BackendTesseractCLI),
			Tesseract:      env.get("OCR_TESSERACT", "tesseract"),
			Lang:           env.get("OCR_LANG", "eng"),
			TessdataDir:    env.get("TESSDATA_PREFIX", ""),
			PSM:            env.getInt("OCR_PSM", 3),
			OEM:            env.getInt("OCR_OEM", 0),
			Granularity:    env.get("OCR_GRANULARITY", "line"),
			MaxImageBytes:  int64(env.getInt("OCR_MAX_IMAGE_BYTES", 20<<20)),
			MaxImagePixels: env.getInt("OCR_MAX_IMAGE_PIXELS", 40_000_000),
			MaxDimension:   env.getInt("OCR_MAX_DIMENSION", 3000),
		},
		Log: LogConfig{
			Level:  env.get("LOG_LEVEL", "info"),
			Format: env.get("LOG_FORMAT", "json"),
		},
	}
	cfg.envErrors = env.errs
	return cfg
}

// envReader reads typed environment variables, remembering the ones that
// did not parse.
type envReader struct {
	errs []ValidationError
}

func (r *envReader) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return intVal
		}
		r.invalid(key, value, "is not a valid integer")
	}
	return defaultValue
}

func (r *envReader) getFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			return floatVal
		}
		r.invalid(key, value, "is not a valid number")
	}
	return defaultValue
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return duration
		}
		r.invalid(key, value, "is not a valid duration")
	}
	return defaultValue
}

func (r *envReader) invalid(key, value, msg string) {
	r.errs = append(r.errs, ValidationError{Field: key, Value: value, Message: msg})
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	for _, e := range c.envErrors {
		v.Add(e)
	}
	v.Field("LABEL_DEFAULT_RULE_SET", c.Engine.DefaultRuleSet, Required)
	v.Field("LABEL_ACCEPT_THRESHOLD", c.Engine.AcceptanceThreshold, UnitInterval(false))
	v.Field("LABEL_AMBIGUITY_MARGIN", c.Engine.AmbiguityMargin, UnitInterval(true))
	v.Field("LABEL_ITEM_TIMEOUT", c.Engine.ItemTimeout, PositiveDuration)
	v.Field("LABEL_MAX_CONCURRENCY", c.Engine.MaxConcurrency, PositiveInt)
	v.Field("LABEL_OCR_RATE", c.Engine.OCRRate, NonNegative)
	v.Field("OCR_BACKEND", c.OCR.Backend, OneOf(BackendTesseractCLI, BackendGosseract, BackendVision))
	v.Field("OCR_GRANULARITY", c.OCR.Granularity, OneOf("line", "paragraph"))
	v.Field("OCR_MAX_IMAGE_BYTES", int(c.OCR.MaxImageBytes), PositiveInt)
	v.Field("OCR_MAX_IMAGE_PIXELS", c.OCR.MaxImagePixels, PositiveInt)
	v.Field("OCR_MAX_DIMENSION", c.OCR.MaxDimension, PositiveInt)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfiguration)
	}
	return nil
}

// NewLogger builds the process logger described by LogConfig.
func NewLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
