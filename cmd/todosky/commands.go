package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/mutation"
	"github.com/tgienger/todosky/internal/page"
	"github.com/tgienger/todosky/internal/session"
	"github.com/tgienger/todosky/internal/ui"
)

func taskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <id|sqid>",
		Short: "Open one task",
		Long: `Open the task screen for a task id, a sqid or a copied reference
such as task:SQID or /task/SQID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ui.Start{Screen: ui.ScreenTask, TaskRef: args[0]})
		},
	}
}

func storiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stories [story-id]",
		Short: "Browse stories by sprint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ui.Start{Screen: ui.ScreenStories}
			if len(args) == 1 {
				start.StoryID = args[0]
			}
			return runTUI(cmd, start)
		},
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in interactively, then open the sprintboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ui.Start{Screen: ui.ScreenLogin})
		},
	}
}

func bulkCmd() *cobra.Command {
	var req mutation.BulkTaskRequest
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Create one task per day of a story's sprint",
		Long: `Create one task per calendar day of the sprint the story belongs to.
Each title is prefixed with the day as [MM.DD]. Creation stops at the first
failure; tasks created before it are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if err := rt.login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			// publish only: the channel is never started, so nothing is watched
			var bus broadcast.Publisher = broadcast.Discard{}
			if ch, err := broadcast.NewChannel(rt.cfg.BroadcastDir, rt.log); err == nil {
				defer ch.Close()
				bus = ch
			}

			board := page.NewSprintboard(rt.client, bus, rt.prefs, rt.log)
			return bulkCreate(ctx, board, req, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&req.StoryID, "story", "s", "", "story id")
	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "task title")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "task description")
	// only fails when the flag is not defined; covered by the command tests
	_ = cmd.MarkFlagRequired("story")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// bulkCreate loads the board and creates the tasks. Load failures are only
// warnings; creation fails when the story or its sprint did not load.
func bulkCreate(ctx context.Context, board *page.Sprintboard, req mutation.BulkTaskRequest, out, errOut io.Writer) error {
	rep := board.Load(ctx)
	for _, err := range rep.Errors {
		fmt.Fprintf(errOut, "warning: %v\n", err)
	}

	res, err := board.Mutations.BulkCreateTasks(ctx, req)
	for _, t := range res.Titles {
		fmt.Fprintln(out, t)
	}
	var verr *mutation.ValidationError
	switch {
	case errors.Is(err, mutation.ErrNotCached) && rep.Failed():
		return fmt.Errorf("%w (load failed: %w)", err, rep.Err())
	case errors.As(err, &verr):
		return fmt.Errorf("rejected: %w", err)
	case err != nil:
		return fmt.Errorf("created %d tasks before failing: %w", len(res.Titles), err)
	}
	fmt.Fprintf(out, "created %d tasks\n", len(res.Titles))
	return nil
}

func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Log in and print the remaining session time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if err := rt.login(ctx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			s, err := rt.client.CheckSession(ctx)
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("server returned no session data")
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.FormatSeconds(s.TimeRemainingSeconds))
			return nil
		},
	}
}
