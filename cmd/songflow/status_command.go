package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"songflow/internal/api"
	"songflow/internal/config"
	"songflow/internal/preflight"
	"songflow/internal/queue"
)

type statusReport struct {
	Daemon    daemonProbe          `json:"daemon"`
	Database  queue.DatabaseHealth `json:"database"`
	Songs     queue.HealthSummary  `json:"songs"`
	SongStats map[string]int       `json:"songStats"`
	Sessions  int                  `json:"activeSessions"`
	Preflight []api.PreflightCheck `json:"preflight,omitempty"`
}

type daemonProbe struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid,omitempty"`
	LockPath string `json:"lockPath"`
	APIBind  string `json:"apiBind,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut    bool
		skipChecks bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{Daemon: probeDaemon(cfg)}

			err = ctx.withStore(func(svc *api.SessionService, store *queue.Store) error {
				c := cmdContext(cmd)
				var err error
				if report.Database, err = store.CheckHealth(c); err != nil {
					return fmt.Errorf("check database: %w", err)
				}
				if report.Songs, err = store.Health(c); err != nil {
					return fmt.Errorf("summarize songs: %w", err)
				}
				if report.SongStats, err = svc.Stats(c, ""); err != nil {
					return fmt.Errorf("song stats: %w", err)
				}
				serviced, err := store.ListServicedSessions(c)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
				report.Sessions = len(serviced)
				return nil
			})
			if err != nil {
				return err
			}

			if !skipChecks {
				report.Preflight = api.FromPreflight(preflight.RunAll(cmdContext(cmd), cfg))
			}

			if jsonOut {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
	outputFlag(cmd, &jsonOut)
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip provider and directory checks")
	return cmd
}

// probeDaemon reports whether another process holds the daemon lock. A
// successful TryLock means nothing is running; the lock is released again
// immediately.
func probeDaemon(cfg *config.Config) daemonProbe {
	probe := daemonProbe{LockPath: cfg.LockPath(), APIBind: cfg.Paths.APIBind}
	lock := flock.New(probe.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return probe
	}
	if locked {
		_ = lock.Unlock()
		return probe
	}
	probe.Running = true
	probe.PID = readPID(cfg.PIDPath())
	return probe
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func printStatus(cmd *cobra.Command, report statusReport) {
	p := newStatusPrinter(cmd.OutOrStdout())

	p.section("Daemon")
	if report.Daemon.Running {
		msg := "running"
		if report.Daemon.PID > 0 {
			msg = fmt.Sprintf("running (pid %d)", report.Daemon.PID)
		}
		p.line("Scheduler", statusOK, msg)
		if report.Daemon.APIBind != "" {
			p.line("API", statusInfo, "http://"+report.Daemon.APIBind)
		}
	} else {
		p.line("Scheduler", statusWarn, "not running")
	}

	p.section("Database")
	db := report.Database
	switch {
	case db.Error != "":
		p.line("State store", statusError, db.Error)
	case !db.IntegrityCheck:
		p.line("State store", statusError, "integrity check failed")
	default:
		p.line("State store", statusOK, db.DBPath)
	}
	p.line("Schema version", statusInfo, strconv.Itoa(db.SchemaVersion))
	p.line("Serviced sessions", statusInfo, strconv.Itoa(report.Sessions))

	p.section("Songs")
	songs := report.Songs
	p.line("Total", statusInfo, strconv.Itoa(songs.Total))
	p.line("In progress", statusInfo, fmt.Sprintf("%d pending, %d processing", songs.Pending, songs.Processing))
	p.line("Ready", statusOK, strconv.Itoa(songs.Ready))
	p.line("Played", statusInfo, strconv.Itoa(songs.Played))
	failed := statusInfo
	if songs.Failed > 0 {
		failed = statusWarn
	}
	p.line("Failed", failed, strconv.Itoa(songs.Failed))

	if len(report.Preflight) == 0 {
		return
	}
	p.section("Dependencies")
	for _, check := range report.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		p.line(check.Name, kind, check.Detail)
	}
}
