package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/preflight"
	"audioconv/internal/queue"
)

type statusReport struct {
	ConfigPath   string               `json:"configPath"`
	ConfigExists bool                 `json:"configExists"`
	Daemon       daemonProbe          `json:"daemon"`
	QueueStats   map[string]int       `json:"queueStats"`
	Database     queue.DatabaseHealth `json:"database"`
	Checks       []preflight.Result   `json:"checks"`
}

type daemonProbe struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid,omitempty"`
	LockPath string `json:"lockPath"`
	Error    string `json:"error,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *queue.Store) error {
				report := statusReport{
					ConfigPath:   ctx.configPath,
					ConfigExists: ctx.configSeen,
					Daemon:       probeDaemon(cfg),
					Checks:       preflight.RunAll(cmd.Context(), cfg),
				}
				stats, err := api.NewJobService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				report.QueueStats = stats
				// CheckHealth fills Error itself; the report carries it either way.
				report.Database, _ = store.CheckHealth(cmd.Context())

				if ctx.JSONMode() {
					return writeJSON(cmd, report)
				}
				renderStatusReport(cmd, report)
				return nil
			})
		},
	}
}

// probeDaemon infers whether a daemon is running from the single-instance lock.
func probeDaemon(cfg *config.Config) daemonProbe {
	probe := daemonProbe{LockPath: cfg.LockPath()}
	lock := flock.New(cfg.LockPath())
	acquired, err := lock.TryLock()
	if err != nil {
		probe.Error = err.Error()
		return probe
	}
	if acquired {
		_ = lock.Unlock()
		return probe
	}
	probe.Running = true
	if raw, err := os.ReadFile(cfg.PIDPath()); err == nil {
		probe.PID, _ = strconv.Atoi(strings.TrimSpace(string(raw)))
	}
	return probe
}

func renderStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	switch {
	case report.Daemon.Error != "":
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, report.Daemon.Error, colorize))
	case report.Daemon.Running:
		detail := "running"
		if report.Daemon.PID > 0 {
			detail = fmt.Sprintf("running (pid %d)", report.Daemon.PID)
		}
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, detail, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}
	configDetail := report.ConfigPath
	if !report.ConfigExists {
		configDetail += " (defaults)"
	}
	fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Database", colorize))
	db := report.Database
	if db.Reachable && db.Error == "" && len(db.MissingTables) == 0 {
		fmt.Fprintln(out, renderStatusLine(db.Driver, statusOK, fmt.Sprintf("%s (schema v%d, %d jobs, %d users)", db.Location, db.SchemaVersion, db.TotalJobs, db.TotalUsers), colorize))
	} else {
		detail := db.Error
		if len(db.MissingTables) > 0 {
			detail = "missing tables: " + strings.Join(db.MissingTables, ", ")
		}
		fmt.Fprintln(out, renderStatusLine(db.Driver, statusError, detail, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Jobs", colorize))
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildStatsRows(report.QueueStats), []columnAlignment{alignLeft, alignRight}))

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Checks", colorize))
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}
