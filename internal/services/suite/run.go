package suite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/execution"
	"github.com/testforge/cardforge/internal/services/healing"
	"github.com/testforge/cardforge/internal/services/orchestrator"
	"github.com/testforge/cardforge/internal/storage"
)

// RunGeneratedTests runs the saved tests of a card type. Files name test
// files in the card's tests directory; without them the tests of the
// requested test types, or of every type on disk, are run.
func (s *Service) RunGeneratedTests(ctx context.Context, req RunTestsRequest) *Report {
	r, start := s.begin(OpRunTests)

	root, st, err := s.project(req.Project)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	files, err := s.testFiles(st, req)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	r.Files = append(r.Files, files...)

	run, err := s.runner.Run(ctx, execution.RunRequest{
		Dir:     root,
		Files:   files,
		Grep:    req.Grep,
		Project: req.BrowserProject,
		Workers: req.Workers,
		Timeout: req.timeout(),
		BaseURL: req.BaseURL,
	})
	if run != nil {
		s.metrics.RecordTestRun(string(run.Status), run.Duration)
		r.Data = run
		r.Errors = run.Errors()
		r.Summary = runSummary(run)
	}
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	if run.Status != execution.RunStatusPassed {
		r.Class = firstClass(r.Errors)
		return s.finish(r, start)
	}

	r.Success = true
	return s.finish(r, start)
}

// ValidateGeneratedTests validates a freshly generated set when a
// configuration is given, otherwise the saved files of a card type.
func (s *Service) ValidateGeneratedTests(ctx context.Context, req ValidateRequest) *Report {
	r, start := s.begin(OpValidateTests)

	var set *domain.GeneratedArtifactSet
	var err error
	if req.Config != nil {
		if err = req.Config.Validate(); err == nil {
			set, err = s.generator(false).Suite(req.Config)
		}
	} else {
		var st *storage.Store
		if _, st, err = s.project(req.Project); err == nil {
			set, err = loadSet(st, req.CardType, req.TestTypes)
		}
	}
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	v := s.validator.Validate(set)
	s.metrics.RecordValidation(v.Valid)
	r.Data = v
	r.Errors = v.Errors
	r.Warnings = v.Warnings
	r.Text = renderValidation(v)
	if !v.Valid {
		r.Class = firstClass(v.Errors)
		r.Summary = fmt.Sprintf("%s: %d validation error(s)", set.Config.CardType, len(v.Errors))
		return s.finish(r, start)
	}

	r.Success = true
	r.Summary = fmt.Sprintf("%s: %d file(s) valid", set.Config.CardType, len(v.Files))
	return s.finish(r, start)
}

// RunAndFix validates, patches and optionally executes a card's tests
// until they pass or no fix applies. With a configuration the suite is
// regenerated and written first, otherwise the saved files are used.
func (s *Service) RunAndFix(ctx context.Context, req RunAndFixRequest) *Report {
	r, start := s.begin(OpRunAndFix)

	root, st, err := s.project(req.Project)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	var set *domain.GeneratedArtifactSet
	if req.Config != nil {
		if err = req.Config.Validate(); err == nil {
			set, err = s.generator(false).Suite(req.Config)
		}
		if err == nil {
			s.recordSet(set)
		}
	} else {
		set, err = loadSet(st, req.CardType, req.TestTypes)
	}
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	orch := orchestrator.New(s.validator, s.fixer, s.runner, st, s.metrics, s.cfg.Fix, s.logger.Named("orchestrator"))
	orch.OnAttempt = req.Progress

	result, err := orch.RunAndFix(ctx, set, orchestrator.Options{
		MaxAttempts: req.MaxAttempts,
		Execute:     !req.ValidateOnly,
		Dir:         root,
		Grep:        req.Grep,
		Project:     req.BrowserProject,
		Workers:     req.Workers,
		Timeout:     req.timeout(),
		BaseURL:     req.BaseURL,
	})
	if result != nil {
		r.Data = result
		r.Files = result.Written
		r.Text = renderAttempts(result)
		r.Summary = fmt.Sprintf("%s %s after %d/%d attempt(s), %d fix(es) applied",
			set.Config.CardType, result.State.Outcome, result.State.Attempt, result.State.MaxAttempts, len(result.State.FixesApplied))
	}
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	switch result.State.Outcome {
	case domain.OutcomeSuccess:
		r.Success = true
	case domain.OutcomeUnfixable:
		r.Errors = result.State.RemainingErrors
		r.Class = domain.ClassUnfixable
	default:
		r.Errors = result.State.RemainingErrors
		r.Class = firstClass(r.Errors)
	}
	return s.finish(r, start)
}

// project resolves a project's root and opens its artifact store
func (s *Service) project(name string) (string, *storage.Store, error) {
	root, err := s.cfg.Project.Root(name)
	if err != nil {
		return "", nil, err
	}
	st, err := s.store(name)
	if err != nil {
		return "", nil, err
	}
	return root, st, nil
}

// testFiles resolves the test files a run request names. Only files that
// exist are returned; none at all is NotFound.
func (s *Service) testFiles(st *storage.Store, req RunTestsRequest) ([]string, error) {
	cardDir, err := st.Layout().CardDir(req.CardType)
	if err != nil {
		return nil, err
	}

	var candidates []string
	switch {
	case len(req.Files) > 0:
		for _, name := range req.Files {
			if err := domain.ValidateFileName(name); err != nil {
				return nil, err
			}
			p, err := domain.SafeJoin(cardDir, domain.TestsDir, name)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, p)
		}
	default:
		types := domain.AllTestTypes
		if len(req.TestTypes) > 0 {
			if types, err = domain.ParseTestTypes(req.TestTypes); err != nil {
				return nil, err
			}
		}
		for _, tt := range types {
			p, err := st.Layout().TestPath(req.CardType, tt)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, p)
		}
	}

	var files []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", p, err)
		}
		files = append(files, p)
	}
	if len(files) == 0 {
		return nil, domain.ErrNotFound("generated tests", filepath.Join(cardDir, domain.TestsDir))
	}
	return files, nil
}

// loadSet reads a card's saved artifacts. The configuration is narrowed to
// the test types found on disk.
func loadSet(st *storage.Store, cardType string, names []string) (*domain.GeneratedArtifactSet, error) {
	if err := domain.ValidateCardType(cardType); err != nil {
		return nil, err
	}
	types := domain.AllTestTypes
	if len(names) > 0 {
		var err error
		if types, err = domain.ParseTestTypes(names); err != nil {
			return nil, err
		}
	}
	cfg := &domain.CardConfiguration{CardType: cardType, TestTypes: append([]domain.TestType(nil), types...)}
	set, err := st.LoadSet(cfg)
	if err != nil {
		return nil, err
	}
	cfg.TestTypes = set.TestTypes()
	return set, nil
}

func runSummary(run *execution.RunResult) string {
	return fmt.Sprintf("%s: %d passed, %d failed, %d skipped of %d in %s",
		run.Status, run.Passed, run.Failed, run.Skipped, run.Total, run.Duration.Round(time.Millisecond))
}

func renderValidation(v *domain.ValidationResult) string {
	names := make([]string, 0, len(v.Files))
	for name := range v.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		status := "ok"
		if !v.Files[name].Valid {
			status = "invalid"
		}
		fmt.Fprintf(&b, "%-40s %s\n", name, status)
	}
	return b.String()
}

func renderAttempts(result *orchestrator.Result) string {
	var b strings.Builder
	for _, a := range result.Attempts {
		fmt.Fprintf(&b, "attempt %d (%s): %d error(s), %d fix(es), %d remaining\n",
			a.Number, a.Phase, len(a.Errors), len(a.Fixes), len(a.Remaining))
		for _, f := range a.Fixes {
			fmt.Fprintf(&b, "  fixed: %s\n", f)
		}
	}
	for _, p := range result.Backups {
		fmt.Fprintf(&b, "backup: %s\n", p)
	}
	return b.String()
}

// firstClass classifies the first error message of a failed report
func firstClass(errs []string) domain.ErrorClass {
	if len(errs) == 0 {
		return domain.ClassInternal
	}
	return healing.Classify(healing.ParseEntry(errs[0]).Message)
}
