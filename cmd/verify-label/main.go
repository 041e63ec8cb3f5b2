package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
	"github.com/joseph-ayodele/label-verifier/internal/services/backend"
	"github.com/joseph-ayodele/label-verifier/internal/services/verify"
)

// Exit codes.
const (
	exitPass  = 0
	exitError = 1
	exitUsage = 2
	exitFail  = 3
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		printError("warning: .env: %v\n", err)
	}
	cfg := common.LoadConfig()

	declared := map[string]string{}
	var (
		image   = flag.String("image", "", "label image to verify (required)")
		ruleSet = flag.String("rule-set", "", "rule set id (defaults to LABEL_DEFAULT_RULE_SET)")
		rules   = flag.String("rules", cfg.Engine.RulesFile, "JSON rule-set document (defaults to the embedded rules)")
		ocrBk   = flag.String("backend", cfg.OCR.Backend, "OCR backend: tesseract-cli | gosseract | vision")
		timeout = flag.Duration("timeout", cfg.Engine.ItemTimeout, "extraction timeout")
		compact = flag.Bool("compact", false, "print the report on a single line")
	)
	flag.Func("declare", "declared value as FIELD=VALUE (repeatable), e.g. --declare abv=45%", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("want FIELD=VALUE, got %q", s)
		}
		declared[strings.TrimSpace(k)] = strings.TrimSpace(v)
		return nil
	})
	flag.Parse()

	if *image == "" {
		printError("Error: --image is required\n")
		flag.Usage()
		return exitUsage
	}
	cfg.Engine.RulesFile = *rules
	cfg.OCR.Backend = *ocrBk
	cfg.Engine.ItemTimeout = *timeout

	logger := common.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(*image)
	if err != nil {
		printError("Error: read image: %v\n", err)
		return exitUsage
	}

	extractor, closeFn, err := backend.New(ctx, cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to initialize OCR backend", "backend", cfg.OCR.Backend, "error", err)
		return exitError
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			logger.Warn("close OCR backend", "error", cerr)
		}
	}()

	svc, err := verify.New(cfg, extractor, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitError
	}

	v, err := svc.Verify(ctx, core.Request{
		Image:    extract.Image{ID: filepath.Base(*image), Data: data},
		RuleSet:  *ruleSet,
		Declared: declared,
	})
	if err != nil {
		logger.Error("verification failed", "image", *image, "kind", common.KindOf(err), "error", err)
		return exitError
	}

	enc := json.NewEncoder(os.Stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(verdict.NewReport(v)); err != nil {
		logger.Error("write report", "error", err)
		return exitError
	}
	if !v.OverallPass {
		return exitFail
	}
	return exitPass
}
