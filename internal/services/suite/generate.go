package suite

import (
	"context"
	"fmt"

	"github.com/testforge/cardforge/internal/domain"
)

func checkGenerate(req GenerateRequest) error {
	if req.Config == nil {
		return domain.ErrInvalidInput("config", "a card configuration is required")
	}
	return req.Config.Validate()
}

// GeneratePageObject renders the page object and saves it on request
func (s *Service) GeneratePageObject(ctx context.Context, req GenerateRequest) *Report {
	r, start := s.begin(OpGeneratePageObject)
	if err := checkGenerate(req); err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	text, err := s.generator(req.EmitFallbacks).PageObject(req.Config)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	s.metrics.RecordArtifact(string(domain.ArtifactPageObject))
	r.Text = text
	r.Warnings = s.validator.ValidatePageObject(domain.PageObjectFileName(req.Config.CardType), text).Warnings

	if req.Save {
		if err := s.save(ctx, r, req.Project, func(st storePaths) (string, error) {
			return st.PageObjectPath(req.Config.CardType)
		}, text); err != nil {
			return s.finish(r, start)
		}
	}

	r.Success = true
	r.Summary = fmt.Sprintf("page object for %s with %d locators", req.Config.CardType, len(req.Config.Elements))
	return s.finish(r, start)
}

// GenerateSpec renders the spec and saves it on request
func (s *Service) GenerateSpec(ctx context.Context, req GenerateRequest) *Report {
	r, start := s.begin(OpGenerateSpec)
	if err := checkGenerate(req); err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	text, err := s.generator(req.EmitFallbacks).Spec(req.Config)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	s.metrics.RecordArtifact(string(domain.ArtifactSpec))
	r.Text = text
	r.Warnings = s.validator.ValidateSpec(domain.SpecFileName(req.Config.CardType), text).Warnings

	if req.Save {
		if err := s.save(ctx, r, req.Project, func(st storePaths) (string, error) {
			return st.SpecPath(req.Config.CardType)
		}, text); err != nil {
			return s.finish(r, start)
		}
	}

	r.Success = true
	r.Summary = fmt.Sprintf("spec for %s with %d features", req.Config.CardType, len(req.Config.TestTypes))
	return s.finish(r, start)
}

// GenerateTest renders one test file. The test type must be one of the
// configuration's test types.
func (s *Service) GenerateTest(ctx context.Context, req GenerateRequest) *Report {
	r, start := s.begin(OpGenerateTest)
	if err := checkGenerate(req); err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	tt, err := domain.ValidateTestType(req.TestType)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	text, err := s.generator(req.EmitFallbacks).Test(req.Config, tt)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	s.metrics.RecordArtifact(string(domain.ArtifactTest))
	r.Text = text
	name := domain.TestFileName(req.Config.CardType, tt)
	r.Warnings = s.validator.ValidateTest(req.Config.CardType, name, text).Warnings

	if req.Save {
		if err := s.save(ctx, r, req.Project, func(st storePaths) (string, error) {
			return st.TestPath(req.Config.CardType, tt)
		}, text); err != nil {
			return s.finish(r, start)
		}
	}

	r.Success = true
	r.Summary = fmt.Sprintf("%s test for %s", tt, req.Config.CardType)
	return s.finish(r, start)
}

// GenerateCompleteSuite renders and validates all artifacts, saving them
// on request.
func (s *Service) GenerateCompleteSuite(ctx context.Context, req GenerateRequest) *Report {
	r, start := s.begin(OpGenerateSuite)
	if err := checkGenerate(req); err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	set, err := s.generator(req.EmitFallbacks).Suite(req.Config)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	s.recordSet(set)

	v := s.validator.Validate(set)
	s.metrics.RecordValidation(v.Valid)
	r.Warnings = v.Warnings
	r.Data = set
	r.Text = renderSet(set)
	if !v.Valid {
		r.Errors = v.Errors
		r.fail(domain.ErrGenerationFailed("generated artifacts do not validate", nil))
		return s.finish(r, start)
	}

	if req.Save {
		st, err := s.store(req.Project)
		if err != nil {
			r.fail(err)
			return s.finish(r, start)
		}
		written, err := st.WriteSet(ctx, set)
		r.Files = written
		if err != nil {
			r.fail(err)
			return s.finish(r, start)
		}
	}

	r.Success = true
	r.Summary = fmt.Sprintf("suite for %s: page object, spec and %d tests", req.Config.CardType, len(set.Tests))
	return s.finish(r, start)
}

// storePaths is the part of the layout save needs
type storePaths interface {
	PageObjectPath(cardType string) (string, error)
	SpecPath(cardType string) (string, error)
	TestPath(cardType string, tt domain.TestType) (string, error)
}

// save writes one artifact and records it, or fails the report.
func (s *Service) save(ctx context.Context, r *Report, project string, path func(storePaths) (string, error), text string) error {
	st, err := s.store(project)
	if err != nil {
		r.fail(err)
		return err
	}
	p, err := path(st.Layout())
	if err != nil {
		r.fail(err)
		return err
	}
	if err := st.WriteFile(ctx, p, text); err != nil {
		r.fail(err)
		return err
	}
	r.Files = append(r.Files, p)
	return nil
}

func (s *Service) recordSet(set *domain.GeneratedArtifactSet) {
	s.metrics.RecordArtifact(string(domain.ArtifactPageObject))
	s.metrics.RecordArtifact(string(domain.ArtifactSpec))
	for range set.Tests {
		s.metrics.RecordArtifact(string(domain.ArtifactTest))
	}
}

// renderSet concatenates a set with file headers, page object first.
func renderSet(set *domain.GeneratedArtifactSet) string {
	ct := set.Config.CardType
	out := fmt.Sprintf("// ===== %s =====\n%s\n// ===== %s =====\n%s",
		domain.PageObjectFileName(ct), set.PageObject,
		domain.SpecFileName(ct), set.Spec)
	for _, tt := range set.TestTypes() {
		out += fmt.Sprintf("\n// ===== %s =====\n%s", domain.TestFileName(ct, tt), set.Tests[tt])
	}
	return out
}
