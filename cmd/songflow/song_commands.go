package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"songflow/internal/api"
	"songflow/internal/queue"
)

func newSongCommand(ctx *commandContext) *cobra.Command {
	songCmd := &cobra.Command{
		Use:     "song",
		Aliases: []string{"songs"},
		Short:   "Act on individual songs",
	}
	songCmd.AddCommand(newSongInterruptCommand(ctx))
	songCmd.AddCommand(newSongNextCommand(ctx))
	songCmd.AddCommand(newSongActionCommand(ctx, "retry", "Retry a failed song", (*api.SessionService).Retry))
	songCmd.AddCommand(newSongActionCommand(ctx, "played", "Mark a ready song as played", (*api.SessionService).MarkPlayed))
	songCmd.AddCommand(newSongActionCommand(ctx, "replay", "Return a played song to ready", (*api.SessionService).Replay))
	return songCmd
}

func newSongInterruptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt <session-id> <prompt>",
		Short: "Queue a one-off song to play next",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args[1:], " ")
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				song, err := svc.Interrupt(cmdContext(cmd), args[0], prompt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued interrupt %s at position %s\n", song.ID, formatOrder(song.OrderIndex))
				return nil
			})
		},
	}
}

func newSongNextCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "next <session-id>",
		Short: "Show the next playable song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				song, err := svc.Next(cmdContext(cmd), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					if song == nil {
						return writeJSON(cmd, nil)
					}
					return writeJSON(cmd, api.SongResponse{Song: *song})
				}
				out := cmd.OutOrStdout()
				if song == nil {
					fmt.Fprintln(out, "Nothing ready yet")
					return nil
				}
				fmt.Fprintf(out, "%s  %s\n", song.ID, songLabel(*song))
				if song.AudioURL != "" {
					fmt.Fprintf(out, "  audio: %s\n", song.AudioURL)
				}
				if song.CoverURL != "" {
					fmt.Fprintf(out, "  cover: %s\n", song.CoverURL)
				}
				return nil
			})
		},
	}
	outputFlag(cmd, &jsonOut)
	return cmd
}

type songAction func(*api.SessionService, context.Context, string) (api.Song, error)

func newSongActionCommand(ctx *commandContext, use, short string, action songAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <song-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				song, err := action(svc, cmdContext(cmd), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Song %s is %s\n", song.ID, song.Status)
				return nil
			})
		},
	}
}

func songLabel(song api.Song) string {
	switch {
	case song.Title != "" && song.Artist != "":
		return fmt.Sprintf("%s - %s", song.Artist, song.Title)
	case song.Title != "":
		return song.Title
	case song.IsInterrupt:
		return "(interrupt) " + song.InterruptPrompt
	default:
		return "(untitled)"
	}
}

func formatOrder(order float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", order), "0"), ".")
}
