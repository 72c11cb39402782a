package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"audioconv/internal/blob"
	"audioconv/internal/config"
	"audioconv/internal/convert"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/workflow"
)

func newSchedulerCommand(ctx *commandContext) *cobra.Command {
	schedulerCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Drive the conversion scheduler manually",
	}
	schedulerCmd.AddCommand(newSchedulerRunOnceCommand(ctx))
	return schedulerCmd
}

func newSchedulerRunOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Convert every pending job once and exit",
		Long: "Runs a single scheduler pass against the configured store. " +
			"Safe alongside a running daemon: jobs are claimed atomically and, with redis enabled, " +
			"the pass is skipped while another instance holds the tick lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.New(logging.Options{
					Level:       logging.LevelName(cfg.Logging.Level),
					Format:      cfg.Logging.Format,
					OutputPaths: []string{"stderr"},
				})
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				blobs, err := blob.New(cfg, logger)
				if err != nil {
					return fmt.Errorf("open blob store: %w", err)
				}

				var opts []workflow.ManagerOption
				if cfg.Redis.Enabled {
					client, err := workflow.NewRedisClient(cmd.Context(), cfg)
					if err != nil {
						return err
					}
					defer client.Close()
					opts = append(opts, workflow.WithTickLock(workflow.NewRedisLockFromConfig(client, cfg, logger)))
				}

				manager := workflow.NewManager(cfg, store, blobs, convert.NewFromConfig(cfg, logger), logger, opts...)
				result, err := manager.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				renderTickResult(cmd, result)
				return nil
			})
		},
	}
}

func renderTickResult(cmd *cobra.Command, result workflow.TickResult) {
	out := cmd.OutOrStdout()
	if result.LockHeld {
		fmt.Fprintln(out, "Another scheduler holds the tick lock; nothing was processed")
		return
	}
	rows := [][]string{
		{"Reclaimed (stale)", fmt.Sprint(result.Reclaimed)},
		{"Claimed", fmt.Sprint(result.Claimed)},
		{"Skipped (claimed elsewhere)", fmt.Sprint(result.Skipped)},
		{"Finished", fmt.Sprint(result.Finished)},
		{"Not valid", fmt.Sprint(result.NotValid)},
		{"Error", fmt.Sprint(result.Errored)},
	}
	fmt.Fprint(out, renderTable([]string{"Outcome", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
}
