// Package cli implements the cardforge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/config"
	"github.com/testforge/cardforge/internal/observability"
	"github.com/testforge/cardforge/internal/services/suite"
)

// Version is the application version, set at build time with
// -ldflags "-X github.com/testforge/cardforge/internal/cli.Version=1.2.0".
var Version = "dev"

// ErrReportFailed is returned when an operation ran but reported failure.
// The report itself has already been printed.
var ErrReportFailed = errors.New("operation failed")

// app carries state shared by every command of one invocation
type app struct {
	cfgPath  string
	project  string
	logLevel string
	asJSON   bool
	noColor  bool

	cfg    *config.Config
	logger *zap.Logger

	// deps overrides collaborators of the service; tests fill it in.
	deps    suite.Dependencies
	cleanup []func()
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	a := &app{}
	root := newRootCmd(a)
	err := root.ExecuteContext(context.Background())
	a.close()
	if err != nil {
		if !errors.Is(err, ErrReportFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cardforge",
		Short:         "Generate, validate and self-heal Playwright suites for merch cards.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetVersionTemplate("cardforge version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "config", "c", config.DefaultPath(), "config file")
	flags.StringVarP(&a.project, "project", "p", "", "project name from project.roots")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.asJSON, "json", false, "print reports as JSON")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newGenerateCmd(a),
		newExtractCmd(a),
		newScriptCmd(a),
		newValidateCmd(a),
		newRunCmd(a),
		newFixCmd(a),
		newRegistryCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads .env, the config file and the environment, then the logger
func (a *app) init() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	if a.logger == nil {
		a.logger = observability.NewLogger(observability.LoggerConfig{
			Env:   string(cfg.Env),
			Level: cfg.LogLevel,
			File:  cfg.LogFile,
		})
		a.onClose(func() { _ = a.logger.Sync() })
	}
	return nil
}

func (a *app) onClose(fn func()) {
	a.cleanup = append(a.cleanup, fn)
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// finish prints r and turns a failed report into ErrReportFailed
func (a *app) finish(w io.Writer, r *suite.Report) error {
	if err := printReport(w, r, a.asJSON); err != nil {
		return err
	}
	if !r.Success {
		return ErrReportFailed
	}
	return nil
}
