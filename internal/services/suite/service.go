// Package suite exposes the card test pipeline as named operations. Every
// operation validates its input first and returns a Report; failures are
// reported, never raised.
package suite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/observability"
	"github.com/testforge/cardforge/internal/registry"
	"github.com/testforge/cardforge/internal/services/execution"
	"github.com/testforge/cardforge/internal/services/extraction"
	"github.com/testforge/cardforge/internal/services/healing"
	"github.com/testforge/cardforge/internal/services/orchestrator"
	"github.com/testforge/cardforge/internal/services/scriptgen"
	"github.com/testforge/cardforge/internal/services/snapshot"
	"github.com/testforge/cardforge/internal/services/validation"
	"github.com/testforge/cardforge/internal/storage"
)

// Dependencies are the collaborators a Service is built from. Nil fields
// get production defaults.
type Dependencies struct {
	Registry *registry.Registry
	Launcher extraction.Launcher
	Runner   orchestrator.Executor
	Mirror   storage.Mirror
	Metrics  *observability.Metrics
}

// Service implements the operations
type Service struct {
	cfg       *config.Config
	registry  *registry.Registry
	extractor *extraction.Extractor
	analyzer  *snapshot.Analyzer
	validator *validation.Validator
	fixer     *healing.Fixer
	runner    orchestrator.Executor
	mirror    storage.Mirror
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewService creates a new service
func NewService(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Registry == nil {
		deps.Registry = registry.New(logger)
	}
	if deps.Launcher == nil {
		deps.Launcher = extraction.NewPlaywrightLauncher(cfg.Browser)
	}
	if deps.Runner == nil {
		deps.Runner = execution.NewRunner(cfg.Runner, logger.Named("runner"))
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(cfg.Metrics.Namespace, nil)
	}

	return &Service{
		cfg:       cfg,
		registry:  deps.Registry,
		extractor: extraction.NewExtractor(deps.Launcher, deps.Registry, cfg.Browser, cfg.Target, logger.Named("extractor")),
		analyzer:  snapshot.NewAnalyzer(deps.Registry, logger.Named("snapshot")),
		validator: validation.NewValidator(logger.Named("validator")),
		fixer:     healing.NewFixer(cfg.Project.WebUtilImport, logger.Named("fixer")),
		runner:    deps.Runner,
		mirror:    deps.Mirror,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// Registry returns the variant registry
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Metrics returns the metrics the service records into
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// ReloadRegistry reloads the variant registry from its sources
func (s *Service) ReloadRegistry(ctx context.Context) *Report {
	r, start := s.begin(OpReloadRegistry)
	err := s.registry.Reload(ctx)
	s.metrics.RecordRegistryReload(err)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	r.Success = true
	r.Summary = "variant registry reloaded"
	r.Data = s.registry.Variants()
	return s.finish(r, start)
}

func (s *Service) generator(emitFallbacks bool) *scriptgen.ScriptGenerator {
	gc := scriptgen.DefaultGeneratorConfig()
	if s.cfg.Project.WebUtilImport != "" {
		gc.WebUtilImport = s.cfg.Project.WebUtilImport
	}
	if s.cfg.Target.Path != "" {
		gc.DefaultPath = s.cfg.Target.Path
	}
	if s.cfg.Target.QueryPrefix != "" {
		gc.DefaultBrowserParams = s.cfg.Target.QueryPrefix
	}
	gc.EmitFallbacks = emitFallbacks
	return scriptgen.NewScriptGenerator(gc)
}

// store opens the artifact tree of a project
func (s *Service) store(project string) (*storage.Store, error) {
	root, err := s.cfg.Project.Root(project)
	if err != nil {
		return nil, err
	}
	layout, err := storage.NewLayout(root, s.cfg.Project.OutputSubpath, s.registry)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(layout, s.mirror, s.logger.Named("store")), nil
}

func (s *Service) begin(op string) (*Report, time.Time) {
	return &Report{ID: uuid.New().String(), Operation: op}, time.Now()
}

func (s *Service) finish(r *Report, start time.Time) *Report {
	s.metrics.RecordOperation(r.Operation, r.Success)
	fields := []zap.Field{
		zap.String("report_id", r.ID),
		zap.String("operation", r.Operation),
		zap.Bool("success", r.Success),
		zap.Duration("duration", time.Since(start)),
		zap.Int("files", len(r.Files)),
	}
	if r.Success {
		s.logger.Info("operation completed", fields...)
	} else {
		s.logger.Warn("operation failed", append(fields, zap.String("class", string(r.Class)), zap.Strings("errors", r.Errors))...)
	}
	return r
}
