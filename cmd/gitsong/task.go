package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/gitsong/internal/app"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

type taskView struct {
	Task      *domain.GenerationTask `json:"task"`
	Artifacts []*domain.AudioFile    `json:"artifacts"`
	Applied   *bool                  `json:"applied,omitempty"`
	Warning   string                 `json:"warning,omitempty"`
}

func newTaskCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect music generation tasks",
	}

	get := &cobra.Command{
		Use:   "get TASK_ID",
		Short: "Show a stored task and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd, global, func(a *app.App) error {
				task, err := a.Reconciler.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				files, err := a.Reconciler.Artifacts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), taskView{Task: task, Artifacts: files})
			})
		},
	}

	poll := &cobra.Command{
		Use:   "poll TASK_ID",
		Short: "Query the music service once and apply the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd, global, func(a *app.App) error {
				out, err := a.Reconciler.Poll(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := taskView{Task: out.Task, Artifacts: out.Artifacts, Applied: &out.Applied}
				if out.ArtifactErr != nil {
					view.Warning = out.ArtifactErr.Error()
				}
				return printJSON(cmd.OutOrStdout(), view)
			})
		},
	}

	var interval time.Duration
	var attempts int
	wait := &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Poll a task until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cmd, global, func(a *app.App) error {
				return waitAndPrint(cmd, a, args[0], interval, attempts)
			})
		},
	}
	def := reconcile.DefaultWaitOptions()
	wait.Flags().DurationVar(&interval, "interval", def.Interval, "delay between polls")
	wait.Flags().IntVar(&attempts, "attempts", def.MaxAttempts, "polls before giving up")

	cmd.AddCommand(get, poll, wait)
	return cmd
}

func waitAndPrint(cmd *cobra.Command, a *app.App, taskID string, interval time.Duration, attempts int) error {
	done, err := a.Reconciler.WaitForCompletion(cmd.Context(), taskID, reconcile.WaitOptions{
		Interval:    interval,
		MaxAttempts: attempts,
	})
	if err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}
	view := taskView{Task: done.Task, Artifacts: done.Artifacts}
	if done.ArtifactErr != nil {
		view.Warning = done.ArtifactErr.Error()
	}
	return printJSON(cmd.OutOrStdout(), view)
}
