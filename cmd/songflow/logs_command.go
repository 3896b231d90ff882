package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"songflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines   int
		follow  bool
		session string
		song    string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon's current log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var filter logs.Filter
			if session != "" {
				filter = append(filter, session)
			}
			if song != "" {
				filter = append(filter, song)
			}

			path := logs.CurrentPath(cfg.Paths.LogDir)
			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmdContext(cmd), path, offset, 500*time.Millisecond, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&session, "session", "", "Only lines mentioning this session id")
	cmd.Flags().StringVar(&song, "song", "", "Only lines mentioning this song id")
	return cmd
}
