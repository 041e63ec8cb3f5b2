package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/async"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
	"github.com/joseph-ayodele/label-verifier/internal/ingest"
	"github.com/joseph-ayodele/label-verifier/internal/services/backend"
	"github.com/joseph-ayodele/label-verifier/internal/services/export"
	"github.com/joseph-ayodele/label-verifier/internal/services/verify"
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

	// Parse CLI flags
	var (
		dir        = flag.String("dir", "", "directory of label images (required)")
		manifest   = flag.String("manifest", "", "CSV manifest: image_filename plus declared-value columns (optional)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		jsonOut    = flag.String("json", "", "also write the JSON batch report to this path (\"-\" for stdout)")
		ruleSet    = flag.String("rule-set", "", "rule set id for rows that name none")
		rules      = flag.String("rules", cfg.Engine.RulesFile, "JSON rule-set document (defaults to the embedded rules)")
		ocrBk      = flag.String("backend", cfg.OCR.Backend, "OCR backend: tesseract-cli | gosseract | vision")
		workers    = flag.Int("workers", cfg.Engine.MaxConcurrency, "maximum concurrent verifications")
		timeout    = flag.Duration("timeout", cfg.Engine.ItemTimeout, "per-image extraction timeout")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories")
		quiet      = flag.Bool("quiet", false, "do not print progress")
	)
	flag.Parse()

	// Validate required flags
	if *dir == "" {
		printError("Error: --dir is required\n")
		return 2
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "label-report.xlsx")
	}
	cfg.Engine.RulesFile = *rules
	cfg.Engine.MaxConcurrency = *workers
	cfg.Engine.ItemTimeout = *timeout
	cfg.OCR.Backend = *ocrBk

	logger := common.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := ingest.Loader{Root: *dir, Logger: logger}
	var reqs []core.Request
	if *manifest != "" {
		rows, err := ingest.ReadManifestFile(*manifest)
		if err != nil {
			logger.Error("failed to read manifest", "manifest", *manifest, "error", err)
			return 1
		}
		reqs = loader.ManifestRequests(rows, *ruleSet)
	} else {
		files, stats, err := ingest.ScanDirectory(*dir, *skipHidden)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			return 1
		}
		logger.Info("directory scanned", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "hidden", stats.Hidden, "failed", stats.Failed)
		reqs = loader.DirectoryRequests(files, *ruleSet)
	}
	if len(reqs) == 0 {
		printError("No label images found in %s\n", *dir)
		return 1
	}

	extractor, closeFn, err := backend.New(ctx, cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to initialize OCR backend", "backend", cfg.OCR.Backend, "error", err)
		return 1
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			logger.Warn("close OCR backend", "error", cerr)
		}
	}()

	svc, err := verify.New(cfg, extractor, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	var opts []async.RunOption
	if !*quiet {
		printError("Processing %d images...\n", len(reqs))
		opts = append(opts, async.WithProgress(func(p async.Progress) {
			printError("\r%s", p)
		}))
	}
	res := svc.VerifyBatch(ctx, reqs, opts...)
	if !*quiet {
		printError("\n")
	}

	xlsx, err := export.NewService(logger).BatchXLSX(res)
	if err != nil {
		logger.Error("failed to build XLSX", "error", err)
		return 1
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write XLSX", "path", *out, "error", err)
		return 1
	}

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, async.NewBatchReport(res)); err != nil {
			logger.Error("failed to write JSON report", "path", *jsonOut, "error", err)
			return 1
		}
	}

	s := res.Summary
	fmt.Printf("Total: %d  Passed: %d  Failed: %d  Errors: %d  Total time: %s\n",
		s.Total, s.Passed, s.Failed, s.Errors, verdict.FormatElapsed(res.TotalElapsed))
	fmt.Printf("Report written to %s\n", *out)

	if ctx.Err() != nil {
		return 130
	}
	if s.Failed > 0 || s.Errors > 0 {
		return 3
	}
	return 0
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
