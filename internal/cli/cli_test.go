package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/domain"
	"github.com/testforge/cardforge/internal/services/execution"
	"github.com/testforge/cardforge/internal/services/extraction"
	"github.com/testforge/cardforge/internal/services/suite"
)

const catalogYAML = `cardType: catalog
cardId: 26f091c2-995d-4a96-a193-d62f6c73af2f
elements:
  price:
    selector: p[slot="heading-m"] span.price
    expectedText: US$17.24/mo
cssProperties:
  price:
    color: rgb(34, 34, 34)
testTypes: [css]
`

type countingRunner struct {
	calls int
}

func (r *countingRunner) Run(ctx context.Context, req execution.RunRequest) (*execution.RunResult, error) {
	r.calls++
	return &execution.RunResult{Status: execution.RunStatusPassed, Passed: len(req.Files), Total: len(req.Files)}, nil
}

type harness struct {
	root    string
	cfgPath string
	card    string
	runner  *countingRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	h := &harness{
		root:    filepath.Join(dir, "mas"),
		cfgPath: filepath.Join(dir, "config.yaml"),
		card:    filepath.Join(dir, "catalog.yaml"),
		runner:  &countingRunner{},
	}
	cfg := config.Default()
	cfg.Project.Roots["mas"] = h.root
	cfg.Project.Default = "mas"
	require.NoError(t, cfg.Save(h.cfgPath))
	require.NoError(t, os.WriteFile(h.card, []byte(catalogYAML), 0o644))
	return h
}

// execute runs one command line and returns stdout, stderr and the error
func (h *harness) execute(args ...string) (string, string, error) {
	a := &app{
		logger: zap.NewNop(),
		deps: suite.Dependencies{
			Runner: h.runner,
			Launcher: extraction.LauncherFunc(func(ctx context.Context) (*extraction.Session, error) {
				return nil, errors.New("no browser in tests")
			}),
		},
	}
	defer a.close()

	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("version")
	require.NoError(t, err)
	assert.Equal(t, "cardforge dev\n", out)

	out, _, err = h.execute("--version")
	require.NoError(t, err)
	assert.Contains(t, out, "cardforge version dev")
}

func TestGenerate_SuiteSaved(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("generate", "suite", "-f", h.card, "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS generate-complete-suite")

	assert.FileExists(t, filepath.Join(h.root, "nala", "acom", "catalog", "catalog.page.js"))
	assert.FileExists(t, filepath.Join(h.root, "nala", "acom", "catalog", "tests", "catalog_css.test.js"))
}

func TestGenerate_JSON(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("--json", "generate", "spec", "-f", h.card)
	require.NoError(t, err)

	var r suite.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, suite.OpGenerateSpec, r.Operation)
	assert.True(t, r.Success)
	assert.Contains(t, r.Text, "Feature")
}

func TestGenerate_BadArguments(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown artifact", []string{"generate", "readme", "-f", h.card}, "invalid argument"},
		{"test without type", []string{"generate", "test", "-f", h.card}, "--test-type"},
		{"missing file", []string{"generate", "suite", "-f", filepath.Join(t.TempDir(), "absent.yaml")}, "reading card configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.execute(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerate_UnknownTestTypeFails(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("generate", "test", "-f", h.card, "-t", "visual")
	assert.ErrorIs(t, err, ErrReportFailed)
	assert.Contains(t, out, "FAILED generate-test")
	assert.Contains(t, out, "class: InvalidInput")
}

func TestValidateFixRun(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.execute("generate", "suite", "-f", h.card, "--save")
	require.NoError(t, err)

	out, _, err := h.execute("validate", "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS validate-generated-tests")

	out, _, err = h.execute("fix", "catalog", "--validate-only")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS run-and-fix")
	assert.Equal(t, 0, h.runner.calls)

	out, _, err = h.execute("run", "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS run-generated-tests")
	assert.Equal(t, 1, h.runner.calls)
}

func TestValidate_FromConfig(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("validate", "-f", h.card)
	require.NoError(t, err)
	assert.Contains(t, out, "catalog.page.js")
}

func TestRun_NothingSaved(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("run", "catalog")
	assert.ErrorIs(t, err, ErrReportFailed)
	assert.Contains(t, out, "class: NotFound")
	assert.Equal(t, 0, h.runner.calls)
}

func TestExtract_BrowserUnavailable(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("extract", "26f091c2-995d-4a96-a193-d62f6c73af2f", "--save")
	assert.ErrorIs(t, err, ErrReportFailed)
	assert.Contains(t, out, "FAILED extract-from-live-instance")

	_, statErr := os.Stat(filepath.Join(h.root, "nala"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract_BadSnapshotFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "card.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, _, err := h.execute("extract", "26f091c2-995d-4a96-a193-d62f6c73af2f", "--snapshot", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing snapshot")
}

func TestScript_Saved(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("script", "26f091c2-995d-4a96-a193-d62f6c73af2f", "--host", "http://localhost:3000", "-o", "extract.js")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:3000")
	assert.FileExists(t, filepath.Join(h.root, suite.ScriptsDir, "extract.js"))
}

func TestRegistryShow(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.execute("registry", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "defaultVariant: plans")
	assert.Contains(t, out, "name: catalog")
}

func TestHTTPServer_Health(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg, logger: zap.NewNop()}
	defer a.close()

	server := a.httpServer(context.Background(), "127.0.0.1:0")
	assert.Equal(t, "127.0.0.1:0", server.Addr)
	assert.Equal(t, cfg.Server.WriteTimeout, server.WriteTimeout)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cardforge-api")
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	r := &suite.Report{
		Operation: suite.OpRunTests,
		Summary:   "no generated tests",
		Errors:    []string{"generated tests not found"},
		Class:     domain.ClassNotFound,
	}
	require.NoError(t, printReport(&buf, r, false))

	assert.Contains(t, buf.String(), "FAILED run-generated-tests: no generated tests\n")
	assert.Contains(t, buf.String(), "  - generated tests not found")
	assert.Contains(t, buf.String(), "class: NotFound")
}

func TestReadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elements: [broken"), 0o644))

	_, err := readConfig(path)
	require.Error(t, err)
	assert.Equal(t, domain.ClassInvalidInput, domain.ClassOf(err))
}
