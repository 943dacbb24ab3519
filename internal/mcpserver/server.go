// Package mcpserver exposes the card test operations as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/services/suite"
)

// Name is the implementation name announced to clients
const Name = "cardforge"

// NewServer creates an MCP server with every operation registered
func NewServer(svc *suite.Service, version string, logger *zap.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil)
	Register(srv, svc, logger)
	return srv
}

// Register adds the operation tools to srv
func Register(srv *mcp.Server, svc *suite.Service, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{svc: svc, logger: logger}

	addTool(t, srv, suite.OpGeneratePageObject,
		"Generate the Playwright page object for a card configuration.",
		generateSchema(false), svc.GeneratePageObject)
	addTool(t, srv, suite.OpGenerateSpec,
		"Generate the feature spec for a card configuration.",
		generateSchema(false), svc.GenerateSpec)
	addTool(t, srv, suite.OpGenerateTest,
		"Generate one test file (css, functional, edit, save, discard, interaction) for a card configuration.",
		generateSchema(true), svc.GenerateTest)
	addTool(t, srv, suite.OpGenerateSuite,
		"Generate and validate the page object, spec and every test of a card configuration.",
		generateSchema(false), svc.GenerateCompleteSuite)
	addTool(t, srv, suite.OpExtract,
		"Extract a card's selectors and styles from the live studio, or from a captured snapshot, and build its configuration.",
		extractSchema(), svc.ExtractFromLiveInstance)
	addTool(t, srv, suite.OpGenerateScript,
		"Generate a standalone Node script that extracts a card with Playwright.",
		scriptSchema(), svc.GenerateExtractionScript)
	addTool(t, srv, suite.OpRunTests,
		"Run the saved tests of a card type with Playwright.",
		runSchema(false), svc.RunGeneratedTests)
	addTool(t, srv, suite.OpValidateTests,
		"Validate a freshly generated suite, or the saved files of a card type.",
		validateSchema(), svc.ValidateGeneratedTests)
	addTool(t, srv, suite.OpRunAndFix,
		"Validate, patch and run a card's tests until they pass or no fix applies.",
		runSchema(true), t.runAndFix)
}

type tools struct {
	svc    *suite.Service
	logger *zap.Logger
}

// runAndFix reports attempt progress in the server log
func (t *tools) runAndFix(ctx context.Context, req suite.RunAndFixRequest) *suite.Report {
	req.Progress = func(attempt, total int) {
		t.logger.Info("run-and-fix attempt", zap.String("card_type", req.CardType), zap.Int("attempt", attempt), zap.Int("max", total))
	}
	return t.svc.RunAndFix(ctx, req)
}

// addTool decodes the arguments into T and renders the report as text.
// A failed operation is a tool error, not a protocol error.
func addTool[T any](t *tools, srv *mcp.Server, name, description string, schema map[string]any, run func(context.Context, T) *suite.Report) {
	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("%s: invalid arguments: %w", name, err))
				return &res, nil
			}
		}

		report := run(ctx, args)
		t.logger.Debug("tool called",
			zap.String("tool", name),
			zap.String("report_id", report.ID),
			zap.Bool("success", report.Success))

		return &mcp.CallToolResult{
			IsError: !report.Success,
			Content: []mcp.Content{&mcp.TextContent{Text: report.String()}},
		}, nil
	})
}
