// Package orchestrator drives the validate, fix and execute loop over one
// generated artifact set.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/observability"
	"github.com/testforge/cardforge/internal/services/execution"
	"github.com/testforge/cardforge/internal/services/healing"
	"github.com/testforge/cardforge/internal/services/validation"
	"github.com/testforge/cardforge/internal/storage"
)

// Phase names the state an attempt record was taken in
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseExecute  Phase = "execute"
)

// Executor runs test files
type Executor interface {
	Run(ctx context.Context, req execution.RunRequest) (*execution.RunResult, error)
}

// Options parameterizes one run-and-fix invocation
type Options struct {
	// MaxAttempts overrides the configured attempt limit when > 0.
	MaxAttempts int
	// Execute runs the tests once validation passes. Without it the loop
	// stops at the first valid set.
	Execute bool
	// Dir is the directory the runner starts in.
	Dir     string
	Grep    string
	Project string
	Workers int
	Timeout time.Duration
	BaseURL string
}

// Attempt records what one state of one attempt saw and did
type Attempt struct {
	Number    int      `json:"number"`
	Phase     Phase    `json:"phase"`
	Errors    []string `json:"errors,omitempty"`
	Fixes     []string `json:"fixes,omitempty"`
	Remaining []string `json:"remaining,omitempty"`
}

// Result is the outcome of RunAndFix. It is returned even when the loop
// stops early so partial progress can be reported.
type Result struct {
	State      domain.FixAttemptState   `json:"state"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	Run        *execution.RunResult     `json:"run,omitempty"`
	Attempts   []Attempt                `json:"attempts"`
	Written    []string                 `json:"written,omitempty"`
	Backups    []string                 `json:"backups,omitempty"`
}

// Orchestrator implements the retry state machine
type Orchestrator struct {
	validator *validation.Validator
	fixer     *healing.Fixer
	executor  Executor
	store     *storage.Store
	metrics   *observability.Metrics
	cfg       config.FixConfig
	logger    *zap.Logger

	// OnAttempt, when set, is called as each attempt starts.
	OnAttempt func(attempt, max int)
}

// New creates an orchestrator. store, executor and metrics may be nil;
// without a store nothing is written and tests cannot be executed.
func New(validator *validation.Validator, fixer *healing.Fixer, executor Executor, store *storage.Store, metrics *observability.Metrics, cfg config.FixConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Orchestrator{
		validator: validator,
		fixer:     fixer,
		executor:  executor,
		store:     store,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunAndFix validates set, patches it until it is valid, executes it and
// patches it again on failure, until the tests pass, no patch applies or
// the attempt limit is reached. set is patched in place.
func (o *Orchestrator) RunAndFix(ctx context.Context, set *domain.GeneratedArtifactSet, opts Options) (*Result, error) {
	if set == nil || set.Config == nil {
		return nil, domain.ErrInvalidInput("artifacts", "are required")
	}
	if opts.Execute && (o.store == nil || o.executor == nil) {
		return nil, domain.ErrInvalidInput("execute", "needs an artifact store and a test runner")
	}

	maxAttempts := o.cfg.MaxAttempts
	if opts.MaxAttempts > 0 {
		maxAttempts = opts.MaxAttempts
	}

	logger := o.logger.With(zap.String("card_type", set.Config.CardType), zap.Int("max_attempts", maxAttempts))
	result := &Result{
		State: domain.FixAttemptState{MaxAttempts: maxAttempts, Outcome: domain.OutcomeRunning},
	}

	var backups *storage.Backups
	if o.store != nil {
		backups = o.store.NewBackups()
		if err := o.sync(ctx, set, result); err != nil {
			return o.finish(result, domain.OutcomeFailed, backups), err
		}
	}

	for result.State.Attempt < maxAttempts {
		if err := ctx.Err(); err != nil {
			return o.finish(result, domain.OutcomeFailed, backups), err
		}
		result.State.Attempt++
		attempt := result.State.Attempt
		if o.OnAttempt != nil {
			o.OnAttempt(attempt, maxAttempts)
		}
		logger.Info("fix attempt started", zap.Int("attempt", attempt))

		// Validate, and fix until valid
		v := o.validate(set)
		result.Validation = v
		if !v.Valid {
			fixed, err := o.fix(ctx, set, v.Errors, attempt, PhaseValidate, result, backups)
			if err != nil {
				return o.finish(result, domain.OutcomeFailed, backups), err
			}
			if fixed.FixesApplied() == 0 {
				result.State.RemainingErrors = v.Errors
				logger.Warn("no fix applies to validation errors", zap.Strings("errors", v.Errors))
				return o.finish(result, domain.OutcomeUnfixable, backups), nil
			}
			if len(fixed.Remaining) > 0 {
				result.State.RemainingErrors = fixed.Remaining
				continue
			}
			v = o.validate(set)
			result.Validation = v
			if !v.Valid {
				result.State.RemainingErrors = v.Errors
				continue
			}
		}
		result.State.RemainingErrors = nil

		if !opts.Execute {
			return o.finish(result, domain.OutcomeSuccess, backups), nil
		}

		// Execute
		run, err := o.execute(ctx, set, opts)
		result.Run = run
		if err != nil && domain.ClassOf(err) != domain.ClassTimeout {
			result.State.RemainingErrors = []string{err.Error()}
			return o.finish(result, domain.OutcomeFailed, backups), err
		}
		if run.Status == execution.RunStatusPassed {
			return o.finish(result, domain.OutcomeSuccess, backups), nil
		}

		failures := run.Errors()
		result.State.RemainingErrors = failures
		if attempt == maxAttempts {
			result.Attempts = append(result.Attempts, Attempt{Number: attempt, Phase: PhaseExecute, Errors: failures, Remaining: failures})
			break
		}
		fixed, err := o.fix(ctx, set, failures, attempt, PhaseExecute, result, backups)
		if err != nil {
			return o.finish(result, domain.OutcomeFailed, backups), err
		}
		if fixed.FixesApplied() == 0 {
			logger.Warn("no fix applies to test failures", zap.Strings("errors", failures))
			return o.finish(result, domain.OutcomeUnfixable, backups), nil
		}
		result.State.RemainingErrors = fixed.Remaining
	}

	logger.Warn("fix attempts exhausted", zap.Strings("remaining", result.State.RemainingErrors))
	return o.finish(result, domain.OutcomeExhausted, backups), nil
}

func (o *Orchestrator) validate(set *domain.GeneratedArtifactSet) *domain.ValidationResult {
	v := o.validator.Validate(set)
	if o.metrics != nil {
		o.metrics.RecordValidation(v.Valid)
	}
	return v
}

// fix runs one fixer pass and persists the touched files.
func (o *Orchestrator) fix(ctx context.Context, set *domain.GeneratedArtifactSet, errs []string, attempt int, phase Phase, result *Result, backups *storage.Backups) (*healing.FixResult, error) {
	fixed := o.fixer.Fix(set, errs)
	result.Attempts = append(result.Attempts, Attempt{
		Number:    attempt,
		Phase:     phase,
		Errors:    errs,
		Fixes:     fixed.Applied,
		Remaining: fixed.Remaining,
	})
	result.State.FixesApplied = append(result.State.FixesApplied, fixed.Applied...)

	if o.metrics != nil {
		for _, applied := range fixed.Applied {
			o.metrics.RecordFix(patternName(applied))
		}
	}

	if o.store == nil || len(fixed.Touched) == 0 {
		return fixed, nil
	}
	files, err := o.store.Files(set)
	if err != nil {
		return fixed, err
	}
	byName := make(map[string]storage.File, len(files))
	for _, f := range files {
		byName[filepath.Base(f.Path)] = f
	}
	for _, name := range fixed.Touched {
		f, ok := byName[name]
		if !ok {
			continue
		}
		if err := o.write(ctx, f, result, backups); err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

// sync writes every artifact whose content differs from the file on disk.
// These are the originals later patches are backed up from, so sync itself
// takes no backups.
func (o *Orchestrator) sync(ctx context.Context, set *domain.GeneratedArtifactSet, result *Result) error {
	files, err := o.store.Files(set)
	if err != nil {
		return err
	}
	for _, f := range files {
		if current, err := os.ReadFile(f.Path); err == nil && string(current) == f.Content {
			continue
		}
		if err := o.write(ctx, f, result, nil); err != nil {
			return err
		}
	}
	return nil
}

// write persists f, backing up the file on disk first when backups is set.
func (o *Orchestrator) write(ctx context.Context, f storage.File, result *Result, backups *storage.Backups) error {
	if o.cfg.Backups && backups != nil {
		if err := backups.Ensure(f.Path); err != nil {
			return err
		}
	}
	if err := o.store.WriteFile(ctx, f.Path, f.Content); err != nil {
		return err
	}
	for _, p := range result.Written {
		if p == f.Path {
			return nil
		}
	}
	result.Written = append(result.Written, f.Path)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, set *domain.GeneratedArtifactSet, opts Options) (*execution.RunResult, error) {
	files, err := o.store.Files(set)
	if err != nil {
		return nil, err
	}
	var tests []string
	for _, f := range files {
		if f.Kind == domain.ArtifactTest {
			tests = append(tests, f.Path)
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = o.store.Layout().Root()
	}
	run, err := o.executor.Run(ctx, execution.RunRequest{
		Dir:     dir,
		Files:   tests,
		Grep:    opts.Grep,
		Project: opts.Project,
		Workers: opts.Workers,
		Timeout: opts.Timeout,
		BaseURL: opts.BaseURL,
	})
	if run == nil {
		if err == nil {
			err = errors.New("runner returned no result")
		}
		run = &execution.RunResult{Status: execution.RunStatusError}
	}
	if o.metrics != nil {
		o.metrics.RecordTestRun(string(run.Status), run.Duration)
	}
	return run, err
}

func (o *Orchestrator) finish(result *Result, outcome domain.Outcome, backups *storage.Backups) *Result {
	result.State.Outcome = outcome
	if backups != nil {
		result.Backups = backups.Paths
	}
	if o.metrics != nil {
		o.metrics.RecordFixRun(string(outcome))
	}
	o.logger.Info("run-and-fix finished",
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", result.State.Attempt),
		zap.Int("fixes", len(result.State.FixesApplied)),
		zap.Int("remaining", len(result.State.RemainingErrors)),
	)
	return result
}

// patternName strips the " (file)" suffix of an applied fix.
func patternName(applied string) string {
	if i := strings.Index(applied, " ("); i >= 0 {
		return applied[:i]
	}
	return applied
}
