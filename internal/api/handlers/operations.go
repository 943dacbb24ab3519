package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/services/suite"
	"github.com/testforge/cardforge/pkg/httputil"
)

// OperationHandler exposes the suite operations over HTTP
type OperationHandler struct {
	svc    *suite.Service
	logger *zap.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(svc *suite.Service, logger *zap.Logger) *OperationHandler {
	return &OperationHandler{svc: svc, logger: logger}
}

// Operations handles GET /api/v1/operations
func (h *OperationHandler) Operations(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{"operations": suite.Operations})
}

// Registry handles GET /api/v1/registry
func (h *OperationHandler) Registry(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.svc.Registry().Snapshot())
}

// ReloadRegistry handles POST /api/v1/registry/reload
func (h *OperationHandler) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	writeReport(w, h.svc.ReloadRegistry(r.Context()))
}

// GeneratePageObject handles POST /api/v1/generate/page-object
func (h *OperationHandler) GeneratePageObject(w http.ResponseWriter, r *http.Request) {
	var req suite.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.GeneratePageObject(r.Context(), req))
}

// GenerateSpec handles POST /api/v1/generate/spec
func (h *OperationHandler) GenerateSpec(w http.ResponseWriter, r *http.Request) {
	var req suite.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.GenerateSpec(r.Context(), req))
}

// GenerateTest handles POST /api/v1/generate/test
func (h *OperationHandler) GenerateTest(w http.ResponseWriter, r *http.Request) {
	var req suite.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.GenerateTest(r.Context(), req))
}

// GenerateSuite handles POST /api/v1/generate/suite
func (h *OperationHandler) GenerateSuite(w http.ResponseWriter, r *http.Request) {
	var req suite.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.GenerateCompleteSuite(r.Context(), req))
}

// Extract handles POST /api/v1/extractions
func (h *OperationHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req suite.ExtractRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.ExtractFromLiveInstance(r.Context(), req))
}

// ExtractionScript handles POST /api/v1/extraction-scripts
func (h *OperationHandler) ExtractionScript(w http.ResponseWriter, r *http.Request) {
	var req suite.ScriptRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.GenerateExtractionScript(r.Context(), req))
}

// Validate handles POST /api/v1/validations
func (h *OperationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req suite.ValidateRequest
	if !decode(w, r, &req) {
		return
	}
	writeReport(w, h.svc.ValidateGeneratedTests(r.Context(), req))
}

// RunTests handles POST /api/v1/cards/{card_type}/runs
func (h *OperationHandler) RunTests(w http.ResponseWriter, r *http.Request) {
	var req suite.RunTestsRequest
	if !decode(w, r, &req) {
		return
	}
	req.CardType = chi.URLParam(r, "card_type")
	writeReport(w, h.svc.RunGeneratedTests(r.Context(), req))
}

// RunAndFix handles POST /api/v1/cards/{card_type}/fix
func (h *OperationHandler) RunAndFix(w http.ResponseWriter, r *http.Request) {
	var req suite.RunAndFixRequest
	if !decode(w, r, &req) {
		return
	}
	req.CardType = chi.URLParam(r, "card_type")
	if req.Config != nil && req.Config.CardType != req.CardType {
		httputil.JSONError(w, http.StatusBadRequest, "CARD_TYPE_MISMATCH", "config.cardType does not match the path", nil)
		return
	}
	req.Progress = func(attempt, total int) {
		h.logger.Info("run-and-fix attempt",
			zap.String("card_type", req.CardType),
			zap.Int("attempt", attempt),
			zap.Int("max", total))
	}
	writeReport(w, h.svc.RunAndFix(r.Context(), req))
}

// decode reads an optional JSON body. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.ErrorFromDomain(w, err)
		return false
	}
	return true
}

// writeReport sends the report; a failed report gets the status of its
// failure class and the report as data.
func writeReport(w http.ResponseWriter, report *suite.Report) {
	if report.Success {
		httputil.JSON(w, http.StatusOK, report)
		return
	}
	status := httputil.StatusForClass(report.Class)
	if status == http.StatusOK {
		status = http.StatusUnprocessableEntity
	}
	httputil.JSONFailure(w, status, string(report.Class), report.Summary, report)
}
