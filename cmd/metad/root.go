package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var resumeFlag string
	var cleanupFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "metad",
		Short:         "Resumable well-tempered metadynamics pipeline driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Unrecognized flags fall through to the default fresh-run path
		// instead of failing.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir := strings.TrimSpace(cleanupFlag); dir != "" {
				return runCleanup(cmd, ctx, dir)
			}
			if dir := strings.TrimSpace(resumeFlag); dir != "" {
				return runResume(cmd, ctx, dir)
			}
			return runFresh(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&resumeFlag, "resume", "", "Resume the run in the given directory")
	rootCmd.Flags().StringVar(&cleanupFlag, "cleanup", "", "Delete transient artifacts from the given run directory")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newCleanupCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
