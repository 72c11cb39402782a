package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"audioconv/internal/api"
	"audioconv/internal/config"
	"audioconv/internal/queue"
)

const listErrorWidth = 48

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect conversion jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				jobs, err := api.NewJobService(store).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if jobs == nil {
						jobs = []api.Job{}
					}
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "User", "Status", "Size", "Created", "Error"},
					buildJobRows(jobs, shouldColorize(cmd.OutOrStdout())),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(store).Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:          %s\n", job.JobID)
				fmt.Fprintf(out, "User:         %d\n", job.UserID)
				fmt.Fprintf(out, "Status:       %s\n", statusCell(job.Status, shouldColorize(out)))
				fmt.Fprintf(out, "Source:       %s (%s, %s)\n", job.SourceFormat, valueOr(job.SourceContentType, "unknown type"), formatBytes(job.SourceSize))
				fmt.Fprintf(out, "Created:      %s\n", formatTimestamp(job.CreatedAt))
				fmt.Fprintf(out, "Updated:      %s\n", formatTimestamp(job.UpdatedAt))
				if job.HeartbeatAt != "" {
					fmt.Fprintf(out, "Heartbeat:    %s\n", formatTimestamp(job.HeartbeatAt))
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:        %s\n", job.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				stats, err := api.NewJobService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, buildStatsRows(stats), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, raw := range values {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (valid: %s)", raw, strings.Join(statusNames(), ", "))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func statusNames() []string {
	all := queue.AllStatuses()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s)
	}
	return names
}

func buildJobRows(jobs []api.Job, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.JobID,
			strconv.FormatInt(job.UserID, 10),
			statusCell(job.Status, colorize),
			formatBytes(job.SourceSize),
			formatTimestamp(job.CreatedAt),
			truncate(job.ErrorMessage, listErrorWidth),
		})
	}
	return rows
}

// buildStatsRows lists every status in lifecycle order.
func buildStatsRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, name := range statusNames() {
		rows = append(rows, []string{name, strconv.Itoa(stats[name])})
	}
	return rows
}

func formatTimestamp(value string) string {
	ts := api.ParseJobTime(value)
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-1]) + "…"
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
