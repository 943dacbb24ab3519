package observability

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordExtraction("live", "", 2*time.Second)
	m.RecordExtraction("live", "NotFound", 0)
	m.RecordArtifact("page")
	m.RecordValidation(false)
	m.RecordFix("missing-describe")
	m.RecordFix("missing-describe")
	m.RecordFixRun("success")
	m.RecordTestRun("passed", time.Minute)
	m.RecordOperation("generate-complete-suite", true)
	m.RecordRegistryReload(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("live", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("live", "NotFound")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FixesApplied.WithLabelValues("missing-describe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("generate-complete-suite", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistryReloadsTotal.WithLabelValues("error")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("", nil)
		NewMetrics("", nil)
	})
}

func TestMetrics_HandlerAndMiddleware(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	h := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestNewLogger_ConsoleAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cardforge.log")
	var console bytes.Buffer

	logger := newLogger(LoggerConfig{Env: "production", Level: "debug", File: file}, zapcore.AddSync(&console))
	logger.Debug("probe", zap.String("element", "price"))
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), `"element":"price"`)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"probe"`))
}

func TestNewLogger_LevelFallback(t *testing.T) {
	var console bytes.Buffer
	logger := newLogger(LoggerConfig{Level: "nonsense"}, zapcore.AddSync(&console))

	logger.Debug("hidden")
	logger.Info("shown")
	_ = logger.Sync()

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}
