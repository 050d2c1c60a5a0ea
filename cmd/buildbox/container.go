package main

import (
	"context"

	"github.com/spf13/cobra"
)

var containerCmd = &cobra.Command{
	Use:     "container",
	Aliases: []string{"c"},
	Short:   "Manage the per-language containers",
}

var containerPrepareCmd = &cobra.Command{
	Use:   "prepare <language>",
	Short: "Pull the image, then create and start the container as needed",
	Args:  cobra.ExactArgs(1),
	RunE: containerAction(func(ctx context.Context, e engine, args []string) error {
		lang, err := parseLanguageArg(args)
		if err != nil {
			return err
		}
		if err := e.Containers.EnsureReady(ctx, lang); err != nil {
			return err
		}
		status, err := e.Containers.Status(ctx, lang)
		if err != nil {
			return err
		}
		return printJSON(status)
	}),
}

var containerStartCmd = &cobra.Command{
	Use:   "start <language>",
	Short: "Start an existing container",
	Args:  cobra.ExactArgs(1),
	RunE: containerAction(func(ctx context.Context, e engine, args []string) error {
		lang, err := parseLanguageArg(args)
		if err != nil {
			return err
		}
		return e.Containers.Start(ctx, lang)
	}),
}

var containerStopCmd = &cobra.Command{
	Use:   "stop <language>",
	Short: "Stop the container if it is running",
	Args:  cobra.ExactArgs(1),
	RunE: containerAction(func(ctx context.Context, e engine, args []string) error {
		lang, err := parseLanguageArg(args)
		if err != nil {
			return err
		}
		stopped, err := e.Containers.Stop(ctx, lang)
		if err != nil {
			return err
		}
		return printJSON(map[string]bool{"stopped": stopped})
	}),
}

var containerRemoveCmd = &cobra.Command{
	Use:     "remove <language>",
	Aliases: []string{"rm"},
	Short:   "Force-remove the container",
	Args:    cobra.ExactArgs(1),
	RunE: containerAction(func(ctx context.Context, e engine, args []string) error {
		lang, err := parseLanguageArg(args)
		if err != nil {
			return err
		}
		return e.Containers.Remove(ctx, lang)
	}),
}

var containerStatusCmd = &cobra.Command{
	Use:   "status <language>",
	Short: "Show image presence and container state",
	Args:  cobra.ExactArgs(1),
	RunE: containerAction(func(ctx context.Context, e engine, args []string) error {
		lang, err := parseLanguageArg(args)
		if err != nil {
			return err
		}
		status, err := e.Containers.Status(ctx, lang)
		if err != nil {
			return err
		}
		return printJSON(status)
	}),
}

func init() {
	rootCmd.AddCommand(containerCmd)
	containerCmd.AddCommand(containerPrepareCmd, containerStartCmd, containerStopCmd, containerRemoveCmd, containerStatusCmd)
}

func containerAction(fn func(context.Context, engine, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, e engine) error {
			return fn(ctx, e, args)
		})
	}
}
