// Command buildbox runs build and test commands against a generated project
// from the shell, and manages the per-language containers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/isdmx/buildbox/app"
	"github.com/isdmx/buildbox/build"
	"github.com/isdmx/buildbox/config"
	"github.com/isdmx/buildbox/sandbox"
)

var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "buildbox",
	Short: "buildbox - sandboxed build and test runner",
	Long: `buildbox runs build and test commands for generated projects inside one
long-lived container per language, caching every outcome by command and file
contents so unchanged steps are never re-run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: config.yaml in . or ./config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log command output and pull progress at info level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engine holds the components a subcommand works with
type engine struct {
	fx.In

	Config       *config.Config
	Catalog      *sandbox.Catalog
	Containers   *sandbox.ContainerManager
	Orchestrator *build.Orchestrator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if verboseFlag {
		cfg.Sandbox.Verbose = true
	}
	return cfg, nil
}

// withEngine starts the application graph, runs fn and stops the graph again
func withEngine(ctx context.Context, fn func(context.Context, engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var e engine
	application := fx.New(
		fx.Supply(cfg),
		app.Module,
		fx.NopLogger,
		fx.Populate(&e),
	)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = application.Stop(context.Background()) }()

	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLanguageArg(args []string) (sandbox.Language, error) {
	return sandbox.ParseLanguage(args[0])
}
