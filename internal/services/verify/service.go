package verify

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core"
	"github.com/joseph-ayodele/label-verifier/internal/core/async"
	"github.com/joseph-ayodele/label-verifier/internal/core/extract"
	"github.com/joseph-ayodele/label-verifier/internal/core/match"
	"github.com/joseph-ayodele/label-verifier/internal/core/rules"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

// Service is the entry point for label verification: single images through
// Verify, many through VerifyBatch.
type Service struct {
	registry *rules.Registry
	proc     *core.Processor
	orch     *async.Orchestrator
	logger   *slog.Logger
}

// New validates cfg, loads the rule sets and wires the pipeline around
// extractor. Any error is a configuration error.
func New(cfg *common.Config, extractor extract.TextExtractor, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		return nil, common.ConfigurationError("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		return nil, common.ConfigurationError("a text extractor is required")
	}

	reg, err := loadRegistry(cfg.Engine.RulesFile)
	if err != nil {
		return nil, err
	}
	if reg, err = reg.WithDefault(cfg.Engine.DefaultRuleSet); err != nil {
		return nil, err
	}

	m := match.New(cfg.Engine.AcceptanceThreshold, cfg.Engine.AmbiguityMargin)
	proc := core.NewProcessor(logger, extractor, reg, m, cfg.Engine.ItemTimeout)
	orch := async.NewOrchestrator(proc, logger,
		async.WithWorkers(cfg.Engine.MaxConcurrency),
		async.WithRateLimit(cfg.Engine.OCRRate, cfg.Engine.MaxConcurrency),
	)

	logger.Info("verify.service.ready",
		"rule_sets", reg.IDs(),
		"default_rule_set", reg.DefaultID(),
		"threshold", m.Threshold(),
		"margin", m.Margin(),
		"timeout", cfg.Engine.ItemTimeout,
		"workers", orch.Workers(),
	)
	return &Service{registry: reg, proc: proc, orch: orch, logger: logger}, nil
}

func loadRegistry(path string) (*rules.Registry, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.LoadFile(path)
}

// RuleSets lists the available rule set ids.
func (s *Service) RuleSets() []string { return s.registry.IDs() }

// DefaultRuleSet is the rule set used when a request names none.
func (s *Service) DefaultRuleSet() string { return s.registry.DefaultID() }

// Verify checks one label image. The error, if any, is classified by
// common.KindOf.
func (s *Service) Verify(ctx context.Context, req core.Request) (verdict.LabelVerdict, error) {
	ctx, _ = common.EnsureRequestID(ctx)
	return s.proc.Process(ctx, req, nil)
}

// VerifyBatch checks many label images concurrently. It never fails as a
// whole; per-item failures are reported on the result items.
func (s *Service) VerifyBatch(ctx context.Context, reqs []core.Request, opts ...async.RunOption) async.BatchResult {
	ctx, _ = common.EnsureRequestID(ctx)
	return s.orch.Run(ctx, reqs, opts...)
}
