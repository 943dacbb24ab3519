package cli

import (
	"github.com/spf13/cobra"

	"github.com/testforge/cardforge/internal/services/suite"
)

// runFlags are shared by run and fix
type runFlags struct {
	testTypes      []string
	files          []string
	grep           string
	browserProject string
	workers        int
	timeoutSeconds int
	baseURL        string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.testTypes, "test-types", "t", nil, "test types to run (default all present)")
	cmd.Flags().StringSliceVar(&f.files, "files", nil, "test file names inside the card's tests directory")
	cmd.Flags().StringVar(&f.grep, "grep", "", "only run tests matching this pattern")
	cmd.Flags().StringVar(&f.browserProject, "browser-project", "", "Playwright project name")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Playwright workers")
	cmd.Flags().IntVar(&f.timeoutSeconds, "timeout", 0, "run timeout in seconds")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "base URL passed to Playwright")
}

func (f *runFlags) request(cardType, project string) suite.RunTestsRequest {
	return suite.RunTestsRequest{
		CardType:       cardType,
		TestTypes:      f.testTypes,
		Files:          f.files,
		Project:        project,
		Grep:           f.grep,
		BrowserProject: f.browserProject,
		Workers:        f.workers,
		TimeoutSeconds: f.timeoutSeconds,
		BaseURL:        f.baseURL,
	}
}

func newRunCmd(a *app) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <card-type>",
		Short: "Run the saved tests of a card type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := a.localService(ctx).RunGeneratedTests(ctx, flags.request(args[0], a.project))
			return a.finish(cmd.OutOrStdout(), r)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		file      string
		testTypes []string
	)

	cmd := &cobra.Command{
		Use:   "validate [card-type]",
		Short: "Validate the saved artifacts of a card type, or a freshly generated suite",
		Example: "  cardforge validate catalog\n" +
			"  cardforge validate -f catalog.yaml",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := suite.ValidateRequest{TestTypes: testTypes, Project: a.project}
			if len(args) == 1 {
				req.CardType = args[0]
			}
			if file != "" {
				card, err := readConfig(file)
				if err != nil {
					return err
				}
				req.Config = card
			}

			ctx := cmd.Context()
			return a.finish(cmd.OutOrStdout(), a.localService(ctx).ValidateGeneratedTests(ctx, req))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "card configuration to generate and validate")
	cmd.Flags().StringSliceVarP(&testTypes, "test-types", "t", nil, "test types to validate")
	return cmd
}

func newFixCmd(a *app) *cobra.Command {
	var (
		flags        runFlags
		file         string
		maxAttempts  int
		validateOnly bool
	)

	cmd := &cobra.Command{
		Use:   "fix <card-type>",
		Short: "Validate, patch and run a card's tests until they pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := suite.RunAndFixRequest{
				RunTestsRequest: flags.request(args[0], a.project),
				MaxAttempts:     maxAttempts,
				ValidateOnly:    validateOnly,
			}
			if file != "" {
				card, err := readConfig(file)
				if err != nil {
					return err
				}
				req.Config = card
			}

			ctx := cmd.Context()
			svc := a.localService(ctx)
			bar := newAttemptBar(cmd.ErrOrStderr(), args[0])
			if !a.asJSON {
				req.Progress = bar.progress
			}
			r := svc.RunAndFix(ctx, req)
			bar.done()
			return a.finish(cmd.OutOrStdout(), r)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "regenerate and write the suite from this configuration first")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt budget (default from config)")
	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "stop once the artifacts validate, without running them")
	return cmd
}
