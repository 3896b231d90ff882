package main

import (
	"github.com/spf13/cobra"

	"songflow/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel    string
		development bool
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
