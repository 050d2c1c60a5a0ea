package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isdmx/buildbox/sandbox"
)

var prepareFlag bool

var buildCmd = &cobra.Command{
	Use:   "build <language> <command> [args...]",
	Short: "Run a build or test command against the project in the sandbox directory",
	Long: `Run a build or test command against the project in the sandbox directory.

The command line is split on whitespace; quotes, pipes and redirections are
passed through literally. Identical commands against identical project files
are answered from the result cache.`,
	Example: `  buildbox build python pytest
  buildbox build rust cargo test --prepare`,
	Args: cobra.MinimumNArgs(2),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&prepareFlag, "prepare", false, "Pull the image and create and start the container first")
}

func runBuild(cmd *cobra.Command, args []string) error {
	lang, err := parseLanguageArg(args)
	if err != nil {
		return err
	}
	command := strings.Join(args[1:], " ")

	return withEngine(cmd.Context(), func(ctx context.Context, e engine) error {
		if prepareFlag && sandbox.EnvironmentFromConfig(e.Config) == sandbox.Container {
			if err := e.Containers.EnsureReady(ctx, lang); err != nil {
				return err
			}
		}

		result, err := e.Orchestrator.Run(ctx, lang, command)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("%s: exit code %d", command, result.ExitCode)
		}
		return nil
	})
}
