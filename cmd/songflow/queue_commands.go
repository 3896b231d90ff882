package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"songflow/internal/api"
	"songflow/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect a session's song queue",
	}
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueSettingsCommand(ctx))
	return queueCmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "List a session's songs in play order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				c := cmdContext(cmd)
				songs, err := svc.Songs(c, args[0], statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SongListResponse{Songs: songs})
				}
				stats, err := svc.Stats(c, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(songs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(queueColumns(), queueRows(songs)))
				fmt.Fprintln(out)
				fmt.Fprintln(out, summarizeStats(stats))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by song status")
	outputFlag(cmd, &jsonOut)
	return cmd
}

func queueColumns() []column {
	return []column{
		{Header: "Order", Align: alignRight},
		{Header: "ID"},
		{Header: "Status"},
		{Header: "Song", MaxWidth: 48},
		{Header: "Retries", Align: alignRight},
		{Header: "Error", MaxWidth: 40},
	}
}

func queueRows(songs []api.Song) [][]string {
	rows := make([][]string, 0, len(songs))
	for _, song := range songs {
		errText := song.ErrorMessage
		if errText == "" && song.CoverError != "" {
			errText = "cover: " + song.CoverError
		}
		rows = append(rows, []string{
			formatOrder(song.OrderIndex),
			song.ID,
			song.Status,
			songLabel(song),
			strconv.Itoa(song.RetryCount),
			errText,
		})
	}
	return rows
}

// summarizeStats renders the non-zero counts in lifecycle order.
func summarizeStats(stats map[string]int) string {
	var parts []string
	for _, status := range queue.AllStatuses() {
		if n := stats[string(status)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", status, n))
		}
	}
	if len(parts) == 0 {
		return "No songs"
	}
	return strings.Join(parts, " ")
}

func newQueueSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show shared cover-art settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				settings, err := svc.Settings(cmdContext(cmd))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s\n", queue.SettingImageProvider, orDefault(settings.ImageProvider))
				fmt.Fprintf(out, "%s: %s\n", queue.SettingImageModel, orDefault(settings.ImageModel))
				return nil
			})
		},
	}
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> [value]",
		Short: "Set or clear a shared setting",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				if err := svc.PutSetting(cmdContext(cmd), args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	})
	return settingsCmd
}

func orDefault(value string) string {
	if value == "" {
		return "(config default)"
	}
	return value
}
