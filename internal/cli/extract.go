package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/testforge/cardforge/internal/services/extraction"
	"github.com/testforge/cardforge/internal/services/snapshot"
	"github.com/testforge/cardforge/internal/services/suite"
)

// targetFlags are the URL overrides shared by extract and script
type targetFlags struct {
	extraction.Target
}

func (f *targetFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Branch, "branch", "", "studio branch")
	cmd.Flags().StringVar(&f.Host, "host", "", "studio host, overrides the branch template")
	cmd.Flags().StringVar(&f.Path, "path", "", "studio page path")
	cmd.Flags().StringVar(&f.QueryPrefix, "query-prefix", "", "fragment placed before the card id")
	cmd.Flags().StringVar(&f.FeatureFlags, "feature-flags", "", "extra query string")
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		target       targetFlags
		testTypes    []string
		snapshotFile string
		generate     bool
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "extract <card-id>",
		Short: "Extract a card configuration from the live studio or a snapshot",
		Example: "  cardforge extract 26f091c2-995d-4a96-a193-d62f6c73af2f --branch main --save\n" +
			"  cardforge extract 26f091c2-995d-4a96-a193-d62f6c73af2f --snapshot card.json",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := suite.ExtractRequest{
				CardID:    args[0],
				Target:    target.Target,
				TestTypes: testTypes,
				Generate:  generate,
				Save:      save,
				Project:   a.project,
			}
			if snapshotFile != "" {
				in, err := readSnapshot(snapshotFile)
				if err != nil {
					return err
				}
				req.Snapshot = in
			}

			ctx := cmd.Context()
			return a.finish(cmd.OutOrStdout(), a.localService(ctx).ExtractFromLiveInstance(ctx, req))
		},
	}

	target.bind(cmd)
	cmd.Flags().StringSliceVarP(&testTypes, "test-types", "t", nil, "test types to configure (default css)")
	cmd.Flags().StringVar(&snapshotFile, "snapshot", "", "captured element snapshot (JSON) to analyze instead of a browser")
	cmd.Flags().BoolVar(&generate, "generate", false, "also generate the suite")
	cmd.Flags().BoolVar(&save, "save", false, "generate and write the suite under the project")
	return cmd
}

func newScriptCmd(a *app) *cobra.Command {
	var (
		target targetFlags
		out    string
	)

	cmd := &cobra.Command{
		Use:   "script <card-id>",
		Short: "Generate a standalone Playwright extraction script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r := a.localService(ctx).GenerateExtractionScript(ctx, suite.ScriptRequest{
				CardID:   args[0],
				Target:   target.Target,
				FileName: out,
				Project:  a.project,
			})
			return a.finish(cmd.OutOrStdout(), r)
		},
	}

	target.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "save under the project's scripts directory with this file name")
	return cmd
}

func readSnapshot(path string) (*snapshot.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var in snapshot.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &in, nil
}
