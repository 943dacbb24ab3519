package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/observability"
	"github.com/testforge/cardforge/internal/registry"
	"github.com/testforge/cardforge/internal/services/execution"
	"github.com/testforge/cardforge/internal/services/healing"
	"github.com/testforge/cardforge/internal/services/scriptgen"
	"github.com/testforge/cardforge/internal/services/validation"
	"github.com/testforge/cardforge/internal/storage"
)

const noDescribeTest = `import { test, expect } from '@playwright/test';
import WebUtil from '../../../../libs/webutil.js';
import CatalogPage from '../catalog.page.js';

test('renders', async ({ page }) => {
  const cardPage = new CatalogPage(page);
  await test.step('check', async () => {
    await expect(cardPage.price('x')).toBeVisible();
  });
});
`

var priceCandidates = []string{`p[slot="heading-m"] span.price`, `[slot="heading-m"] span.price`, `span[is="inline-price"]`}

func newSet(t *testing.T) *domain.GeneratedArtifactSet {
	t.Helper()
	cfg := &domain.CardConfiguration{
		CardType: "catalog",
		CardID:   "26f091c2-995d-4a96-a193-d62f6c73af2f",
		Elements: map[string]domain.ElementSpec{
			"price": {
				Selector:          priceCandidates[0],
				FallbackSelectors: priceCandidates[1:],
				ExpectedText:      "US$17.24/mo",
			},
		},
		CSSProperties: map[string]map[string]string{"price": {"color": "rgb(34, 34, 34)"}},
		TestTypes:     []domain.TestType{domain.TestTypeCSS},
	}
	set, err := scriptgen.NewScriptGenerator(scriptgen.DefaultGeneratorConfig()).Suite(cfg)
	require.NoError(t, err)
	return set
}

// fakeExecutor returns scripted results; a nil entry means "fail on the
// price selector currently in the page object".
type fakeExecutor struct {
	set     *domain.GeneratedArtifactSet
	results []*execution.RunResult
	err     error
	calls   int
	files   []string
}

func (f *fakeExecutor) Run(ctx context.Context, req execution.RunRequest) (*execution.RunResult, error) {
	f.calls++
	f.files = req.Files
	if f.err != nil {
		return &execution.RunResult{Status: execution.RunStatusError}, f.err
	}
	var r *execution.RunResult
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	if r == nil {
		r = f.selectorFailure()
	}
	return r, nil
}

func (f *fakeExecutor) selectorFailure() *execution.RunResult {
	current := ""
	for _, c := range priceCandidates {
		if strings.Contains(f.set.PageObject, scriptgen.Quote(c)) {
			current = c
			break
		}
	}
	return &execution.RunResult{
		Status: execution.RunStatusFailed,
		Failures: []execution.Failure{{
			Title: "Catalog Card css > @catalog-css",
			File:  "catalog_css.test.js",
			Message: "Error: expect(locator).toBeVisible() failed\n\nLocator: locator('merch-card').locator(" +
				scriptgen.Quote(current) + ")\nExpected: visible\nReceived: <element(s) not found>",
		}},
	}
}

func passed() *execution.RunResult {
	return &execution.RunResult{Status: execution.RunStatusPassed, Passed: 1, Total: 1}
}

func failedWith(msg string) *execution.RunResult {
	return &execution.RunResult{
		Status:   execution.RunStatusFailed,
		Failures: []execution.Failure{{Title: "renders", File: "catalog_css.test.js", Message: msg}},
	}
}

type fixture struct {
	orch    *Orchestrator
	store   *storage.Store
	exec    *fakeExecutor
	metrics *observability.Metrics
	root    string
}

func newFixture(t *testing.T, set *domain.GeneratedArtifactSet, withStore bool) *fixture {
	t.Helper()
	f := &fixture{
		exec:    &fakeExecutor{set: set},
		metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
		root:    t.TempDir(),
	}
	if withStore {
		layout, err := storage.NewLayout(f.root, "nala", registry.New(nil))
		require.NoError(t, err)
		f.store = storage.NewStore(layout, nil, zap.NewNop())
	}
	var executor Executor = f.exec
	f.orch = New(
		validation.NewValidator(zap.NewNop()),
		healing.NewFixer(scriptgen.DefaultGeneratorConfig().WebUtilImport, zap.NewNop()),
		executor,
		f.store,
		f.metrics,
		config.FixConfig{MaxAttempts: 3, Backups: true},
		zap.NewNop(),
	)
	return f
}

func TestRunAndFix_ValidSetWithoutExecution(t *testing.T) {
	set := newSet(t)
	f := newFixture(t, set, false)

	result, err := f.orch.RunAndFix(context.Background(), set, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, result.State.Outcome)
	assert.Equal(t, 1, result.State.Attempt)
	assert.Empty(t, result.State.FixesApplied)
	assert.Zero(t, f.exec.calls)
}

func TestRunAndFix_MissingDescribeIsFixedThenPasses(t *testing.T) {
	set := newSet(t)
	set.Tests[domain.TestTypeCSS] = noDescribeTest
	f := newFixture(t, set, true)
	f.exec.results = []*execution.RunResult{passed()}

	var started []int
	f.orch.OnAttempt = func(attempt, total int) { started = append(started, attempt) }

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, result.State.Outcome)
	assert.Equal(t, 1, result.State.Attempt)
	assert.Equal(t, []int{1}, started)
	assert.Equal(t, []string{"describe-wrapper (catalog_css.test.js)"}, result.State.FixesApplied)
	assert.Empty(t, result.State.RemainingErrors)

	testPath, err := f.store.Layout().TestPath("catalog", domain.TestTypeCSS)
	require.NoError(t, err)
	data, err := os.ReadFile(testPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test.describe('Catalog Card css', () => {")
	require.Len(t, result.Backups, 1)
	backup, err := os.ReadFile(result.Backups[0])
	require.NoError(t, err)
	assert.Equal(t, noDescribeTest, string(backup))
	assert.Equal(t, []string{testPath}, f.exec.files)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FixesApplied.WithLabelValues("describe-wrapper")))
}

func TestRunAndFix_ZeroFixesStopAfterFirstAttempt(t *testing.T) {
	set := newSet(t)
	f := newFixture(t, set, true)
	failure := failedWith("Error: expect(locator).toHaveText() failed")
	f.exec.results = []*execution.RunResult{failure, failure, failure}

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeUnfixable, result.State.Outcome)
	assert.Equal(t, 1, result.State.Attempt)
	assert.Equal(t, 1, f.exec.calls)
	assert.Equal(t, failure.Errors(), result.State.RemainingErrors)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FixAttemptsTotal.WithLabelValues("unfixable")))
}

func TestRunAndFix_SelectorFallbackThenPass(t *testing.T) {
	set := newSet(t)
	f := newFixture(t, set, true)
	f.exec.results = []*execution.RunResult{nil, passed()}

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, result.State.Outcome)
	assert.Equal(t, 2, result.State.Attempt)
	assert.Equal(t, []string{"selector-fallback (catalog.page.js)"}, result.State.FixesApplied)
	assert.Contains(t, set.PageObject, scriptgen.Quote(priceCandidates[1]))

	pagePath, err := f.store.Layout().PageObjectPath("catalog")
	require.NoError(t, err)
	data, err := os.ReadFile(pagePath)
	require.NoError(t, err)
	assert.Equal(t, set.PageObject, string(data))
}

func TestRunAndFix_Exhausted(t *testing.T) {
	set := newSet(t)
	f := newFixture(t, set, true)

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeExhausted, result.State.Outcome)
	assert.Equal(t, 3, result.State.Attempt)
	assert.Equal(t, 3, f.exec.calls)
	assert.Len(t, result.State.FixesApplied, 2)
	require.Len(t, result.State.RemainingErrors, 1)
	assert.Contains(t, result.State.RemainingErrors[0], priceCandidates[2])
}

func TestRunAndFix_MaxAttemptsOverride(t *testing.T) {
	set := newSet(t)
	f := newFixture(t, set, true)

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true, MaxAttempts: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExhausted, result.State.Outcome)
	assert.Equal(t, 1, f.exec.calls)
	assert.Empty(t, result.State.FixesApplied)
}

func TestRunAndFix_RemainingErrorsMoveToNextAttempt(t *testing.T) {
	set := newSet(t)
	set.Tests[domain.TestTypeCSS] = noDescribeTest
	set.Spec = strings.Replace(set.Spec, "features: [", "cases: [", 1)
	f := newFixture(t, set, false)

	result, err := f.orch.RunAndFix(context.Background(), set, Options{})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeUnfixable, result.State.Outcome)
	assert.Equal(t, 2, result.State.Attempt)
	assert.Equal(t, []string{"describe-wrapper (catalog_css.test.js)"}, result.State.FixesApplied)
	assert.Equal(t, []string{"[spec] Missing features array (catalog.spec.js)"}, result.State.RemainingErrors)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, PhaseValidate, result.Attempts[0].Phase)
}

func TestRunAndFix_BackupHoldsGeneratedOriginal(t *testing.T) {
	set := newSet(t)
	original := set.PageObject
	f := newFixture(t, set, true)
	f.exec.results = []*execution.RunResult{nil, passed()}

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, result.State.Outcome)
	require.NotEqual(t, original, set.PageObject)

	pagePath, err := f.store.Layout().PageObjectPath("catalog")
	require.NoError(t, err)
	matches, err := filepath.Glob(pagePath + ".backup-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, matches, result.Backups)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestRunAndFix_BackupOncePerFile(t *testing.T) {
	set := newSet(t)
	original := set.PageObject
	f := newFixture(t, set, true)

	pagePath, err := f.store.Layout().PageObjectPath("catalog")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(pagePath), 0o755))
	require.NoError(t, os.WriteFile(pagePath, []byte("// previous version\n"), 0o644))

	result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExhausted, result.State.Outcome)
	require.Len(t, result.State.FixesApplied, 2)

	matches, err := filepath.Glob(pagePath + ".backup-*")
	require.NoError(t, err)
	require.Len(t, matches, 1, "patched twice, backed up once")
	assert.Equal(t, matches, result.Backups)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestRunAndFix_Errors(t *testing.T) {
	t.Run("execute needs a store", func(t *testing.T) {
		set := newSet(t)
		f := newFixture(t, set, false)
		_, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
		assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))
	})

	t.Run("nil set", func(t *testing.T) {
		f := newFixture(t, nil, false)
		_, err := f.orch.RunAndFix(context.Background(), nil, Options{})
		assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))
	})

	t.Run("runner cannot start", func(t *testing.T) {
		set := newSet(t)
		f := newFixture(t, set, true)
		f.exec.err = domain.ErrExecutionFailed("could not start test runner", os.ErrNotExist)

		result, err := f.orch.RunAndFix(context.Background(), set, Options{Execute: true})
		require.Error(t, err)
		assert.Equal(t, domain.OutcomeFailed, result.State.Outcome)
		assert.NotEmpty(t, result.Written, "partial progress is kept")
	})

	t.Run("cancelled context", func(t *testing.T) {
		set := newSet(t)
		f := newFixture(t, set, false)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result, err := f.orch.RunAndFix(ctx, set, Options{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, domain.OutcomeFailed, result.State.Outcome)
	})
}

func TestPatternName(t *testing.T) {
	assert.Equal(t, "selector-fallback", patternName("selector-fallback (catalog.page.js)"))
	assert.Equal(t, "plain", patternName("plain"))
}
