package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/extraction"
)

// ScriptsDir holds saved extraction scripts below the project root
const ScriptsDir = "scripts"

// ExtractFromLiveInstance extracts a card, either from the live page or
// from a captured snapshot, and builds its configuration. A card that is
// not found fails the report before anything is written.
func (s *Service) ExtractFromLiveInstance(ctx context.Context, req ExtractRequest) *Report {
	r, start := s.begin(OpExtract)

	names := req.TestTypes
	if len(names) == 0 {
		names = []string{string(defaultExtractionType)}
	}
	testTypes, err := domain.ParseTestTypes(names)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}

	source := "live"
	var result *domain.ExtractionResult
	if req.Snapshot != nil {
		source = "snapshot"
		if req.Snapshot.CardID == "" {
			req.Snapshot.CardID = req.CardID
		}
		result, err = s.analyzer.Analyze(*req.Snapshot)
	} else {
		result, err = s.extractor.Extract(ctx, extraction.Request{CardID: req.CardID, Target: req.Target})
	}
	s.metrics.RecordExtraction(source, classLabel(err), time.Since(start))
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	r.Warnings = append(r.Warnings, result.Warnings...)

	cfg, err := extraction.BuildConfiguration(result, result.CardID, testTypes)
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	r.Data = cfg

	out, err := yaml.Marshal(cfg)
	if err != nil {
		r.fail(fmt.Errorf("encoding configuration: %w", err))
		return s.finish(r, start)
	}
	r.Text = string(out)

	if req.Generate || req.Save {
		gen := s.GenerateCompleteSuite(ctx, GenerateRequest{Config: cfg, Save: req.Save, Project: req.Project})
		r.Files = gen.Files
		r.Warnings = append(r.Warnings, gen.Warnings...)
		if !gen.Success {
			r.Errors = append(r.Errors, gen.Errors...)
			r.Class = gen.Class
			r.Summary = fmt.Sprintf("%s extracted but generation failed (%s)", cfg.CardType, gen.Class)
			return s.finish(r, start)
		}
		r.Text += "\n" + gen.Text
	}

	r.Success = true
	r.Summary = fmt.Sprintf("%s card %s: %d elements from %s", cfg.CardType, cfg.CardID, len(cfg.Elements), source)
	return s.finish(r, start)
}

// GenerateExtractionScript renders the standalone extraction script for a
// card, saving it under the project's scripts directory when a file name
// is given.
func (s *Service) GenerateExtractionScript(ctx context.Context, req ScriptRequest) *Report {
	r, start := s.begin(OpGenerateScript)

	url, err := s.extractor.URL(extraction.Request{CardID: req.CardID, Target: req.Target})
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	if req.FileName != "" {
		if err := domain.ValidateFileName(req.FileName); err != nil {
			r.fail(err)
			return s.finish(r, start)
		}
	}

	script, err := extraction.GenerateScript(s.registry, extraction.ScriptOptions{
		CardID:       req.CardID,
		URL:          url,
		Headless:     s.cfg.Browser.Headless,
		StorageState: s.cfg.Browser.StorageState,
		AuthPatterns: s.cfg.Browser.AuthPatterns,
	})
	if err != nil {
		r.fail(err)
		return s.finish(r, start)
	}
	r.Text = script

	if req.FileName != "" {
		root, err := s.cfg.Project.Root(req.Project)
		if err != nil {
			r.fail(err)
			return s.finish(r, start)
		}
		path, err := domain.SafeJoin(filepath.Join(root, ScriptsDir), req.FileName)
		if err != nil {
			r.fail(err)
			return s.finish(r, start)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			r.fail(fmt.Errorf("creating %s: %w", filepath.Dir(path), err))
			return s.finish(r, start)
		}
		if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
			r.fail(fmt.Errorf("writing %s: %w", path, err))
			return s.finish(r, start)
		}
		r.Files = append(r.Files, path)
	}

	r.Success = true
	r.Summary = fmt.Sprintf("extraction script for %s", url)
	return s.finish(r, start)
}

func classLabel(err error) string {
	if err == nil {
		return ""
	}
	return string(domain.ClassOf(err))
}
