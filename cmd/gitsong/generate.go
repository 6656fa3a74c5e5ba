package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/gitsong/internal/app"
	"github.com/phrazzld/gitsong/internal/orchestrator"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

type generateOptions struct {
	repository   string
	window       string
	date         string
	start        string
	end          string
	style        string
	model        string
	instrumental bool
	wait         bool
	interval     time.Duration
	attempts     int
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write lyrics from recent commits and submit them for music generation",
		Example: `  gitsong generate --repo octo/hello --window day
  gitsong generate --repo https://github.com/octo/hello --window custom --start 2024-03-01 --end 2024-03-08 --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := opts.songRequest()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cmd, global, func(a *app.App) error {
				handle, err := a.Songs.Generate(cmd.Context(), req)
				if err != nil {
					return err
				}
				if !opts.wait {
					return printJSON(cmd.OutOrStdout(), handle)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "submitted song %s as task %s, waiting...\n", handle.SongID, handle.TaskID)
				return waitAndPrint(cmd, a, handle.TaskID, opts.interval, opts.attempts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.repository, "repo", "", "repository as owner/name, URL or git remote")
	f.StringVar(&opts.window, "window", string(orchestrator.WindowDay), "commit window: day, week, custom or since_last")
	f.StringVar(&opts.date, "date", "", "day or week anchor (YYYY-MM-DD), defaults to today")
	f.StringVar(&opts.start, "start", "", "custom window start (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&opts.end, "end", "", "custom window end (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&opts.style, "style", "", "music style, defaults to the configured style")
	f.StringVar(&opts.model, "model", "", "language model id from the registry")
	f.BoolVar(&opts.instrumental, "instrumental", false, "generate without vocals")
	f.BoolVar(&opts.wait, "wait", false, "poll until the music is ready")
	f.DurationVar(&opts.interval, "wait-interval", reconcile.DefaultWaitOptions().Interval, "delay between polls")
	f.IntVar(&opts.attempts, "wait-attempts", reconcile.DefaultWaitOptions().MaxAttempts, "polls before giving up")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

// songRequest converts flags into a pipeline request. Field validation is
// left to the orchestrator.
func (o *generateOptions) songRequest() (orchestrator.SongRequest, error) {
	req := orchestrator.SongRequest{
		Repository:   o.repository,
		Window:       orchestrator.WindowKind(o.window),
		Style:        o.style,
		Instrumental: o.instrumental,
		Model:        o.model,
	}
	var err error
	if req.Date, err = parseTime("date", o.date); err != nil {
		return req, err
	}
	if req.Start, err = parseTime("start", o.start); err != nil {
		return req, err
	}
	if req.End, err = parseTime("end", o.end); err != nil {
		return req, err
	}
	return req, nil
}

func parseTime(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD or RFC 3339: %q", flag, value)
	}
	return t, nil
}
