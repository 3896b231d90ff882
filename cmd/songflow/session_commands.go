package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"songflow/internal/api"
	"songflow/internal/queue"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Create and manage generation sessions",
	}
	sessionCmd.AddCommand(newSessionCreateCommand(ctx))
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionCloseCommand(ctx))
	sessionCmd.AddCommand(newSessionReopenCommand(ctx))
	sessionCmd.AddCommand(newSessionPromptCommand(ctx))
	return sessionCmd
}

func newSessionCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		req     api.CreateSessionRequest
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "create <prompt>",
		Short: "Start a new session from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = strings.Join(args, " ")
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				session, err := svc.Create(cmdContext(cmd), req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SessionResponse{Session: session})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", session.ID, session.Mode)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Mode, "mode", string(queue.ModeEndless), "Session mode (endless or oneshot)")
	flags.StringVar(&req.LLMProvider, "llm-provider", "", "Text provider name from [llm.providers]")
	flags.StringVar(&req.LLMModel, "llm-model", "", "Text model identifier")
	flags.IntVar(&req.Params.BPM, "bpm", 0, "Tempo constraint")
	flags.StringVar(&req.Params.KeyScale, "key", "", "Key and scale, e.g. \"A minor\"")
	flags.StringVar(&req.Params.TimeSignature, "time-signature", "", "Time signature, e.g. 4")
	flags.IntVar(&req.Params.AudioDurationSeconds, "duration", 0, "Target song length in seconds")
	flags.StringVar(&req.Params.LyricsLanguage, "language", "", "Lyrics language")
	flags.IntVar(&req.Params.InferSteps, "infer-steps", 0, "Diffusion steps passed to the audio service")
	outputFlag(cmd, &jsonOut)
	return cmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				sessions, err := svc.List(cmdContext(cmd), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SessionListResponse{Sessions: sessions})
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						s.ID,
						s.Status,
						s.Mode,
						strconv.Itoa(s.SongsGenerated),
						s.Prompt,
					})
				}
				fmt.Fprint(out, renderTable([]column{
					{Header: "ID"},
					{Header: "Status"},
					{Header: "Mode"},
					{Header: "Songs", Align: alignRight},
					{Header: "Prompt", MaxWidth: 60},
				}, rows))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (active, closing, closed)")
	outputFlag(cmd, &jsonOut)
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				session, err := svc.Describe(cmdContext(cmd), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.SessionResponse{Session: session})
				}
				printSession(cmd, session)
				return nil
			})
		},
	}
	outputFlag(cmd, &jsonOut)
	return cmd
}

func newSessionCloseCommand(ctx *commandContext) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "close <session-id>",
		Short: "Stop generating new songs for a session",
		Long: "Close a session. By default the session drains: songs already in flight\n" +
			"finish and the session closes once nothing is left. --now closes it right away.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				session, err := svc.Close(cmdContext(cmd), args[0], now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s\n", session.ID, session.Status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Close immediately instead of draining")
	return cmd
}

func newSessionReopenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <session-id>",
		Short: "Resume a closing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				session, err := svc.Reopen(cmdContext(cmd), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s\n", session.ID, session.Status)
				return nil
			})
		},
	}
}

func newSessionPromptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <session-id> <prompt>",
		Short: "Re-steer a session with a new prompt",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args[1:], " ")
			return ctx.withStore(func(svc *api.SessionService, _ *queue.Store) error {
				session, err := svc.UpdatePrompt(cmdContext(cmd), args[0], prompt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s prompt updated (epoch %d)\n", session.ID, session.PromptEpoch)
				return nil
			})
		},
	}
}

func printSession(cmd *cobra.Command, s api.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", s.ID)
	fmt.Fprintf(out, "Status:    %s\n", s.Status)
	fmt.Fprintf(out, "Mode:      %s\n", s.Mode)
	fmt.Fprintf(out, "Prompt:    %s\n", s.Prompt)
	fmt.Fprintf(out, "Epoch:     %d\n", s.PromptEpoch)
	fmt.Fprintf(out, "Songs:     %d\n", s.SongsGenerated)
	if s.LLMProvider != "" || s.LLMModel != "" {
		fmt.Fprintf(out, "Text:      %s %s\n", s.LLMProvider, s.LLMModel)
	}
	if params := describeParams(s.Params); params != "" {
		fmt.Fprintf(out, "Params:    %s\n", params)
	}
	fmt.Fprintf(out, "Created:   %s\n", s.CreatedAt)
}

func describeParams(p api.GenerationParams) string {
	var parts []string
	if p.BPM > 0 {
		parts = append(parts, fmt.Sprintf("%d bpm", p.BPM))
	}
	if p.KeyScale != "" {
		parts = append(parts, p.KeyScale)
	}
	if p.TimeSignature != "" {
		parts = append(parts, p.TimeSignature+"/4")
	}
	if p.AudioDurationSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", p.AudioDurationSeconds))
	}
	if p.LyricsLanguage != "" {
		parts = append(parts, p.LyricsLanguage)
	}
	if p.InferSteps > 0 {
		parts = append(parts, fmt.Sprintf("%d steps", p.InferSteps))
	}
	return strings.Join(parts, ", ")
}
