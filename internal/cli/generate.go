package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testforge/cardforge/internal/services/suite"
)

var generateTargets = []string{"page-object", "spec", "test", "suite"}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		file      string
		testType  string
		save      bool
		fallbacks bool
	)

	cmd := &cobra.Command{
		Use:       "generate <page-object|spec|test|suite>",
		Short:     "Generate artifacts from a card configuration",
		Example:   "  cardforge generate suite -f catalog.yaml --save",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: generateTargets,
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := readConfig(file)
			if err != nil {
				return err
			}
			req := suite.GenerateRequest{
				Config:        card,
				TestType:      testType,
				Save:          save,
				Project:       a.project,
				EmitFallbacks: fallbacks,
			}

			ctx := cmd.Context()
			svc := a.localService(ctx)
			var run func(context.Context, suite.GenerateRequest) *suite.Report
			switch args[0] {
			case "page-object":
				run = svc.GeneratePageObject
			case "spec":
				run = svc.GenerateSpec
			case "test":
				if testType == "" {
					return fmt.Errorf("--test-type is required for generate test")
				}
				run = svc.GenerateTest
			default:
				run = svc.GenerateCompleteSuite
			}
			return a.finish(cmd.OutOrStdout(), run(ctx, req))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "card configuration (YAML or JSON, - for stdin)")
	cmd.Flags().StringVarP(&testType, "test-type", "t", "", "test type for generate test")
	cmd.Flags().BoolVar(&save, "save", false, "write the artifacts under the project")
	cmd.Flags().BoolVar(&fallbacks, "fallbacks", false, "emit fallback selectors in the page object")
	return cmd
}
