package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskthread/internal/cursor"
	"taskthread/internal/thread"
)

func newCommentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"c"},
		Short:   "Work with a task's comment thread",
	}
	cmd.AddCommand(
		newCommentsListCmd(a),
		newCommentsAddCmd(a),
		newCommentsEditCmd(a),
		newCommentsDeleteCmd(a),
	)
	return cmd
}

func newCommentsListCmd(a *app) *cobra.Command {
	var (
		sortFlag string
		size     int
		pages    int
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "Page through a task's comments",
		Long: `Loads the thread the way a scrolling view does: the first page, then
one more page per scroll until --pages pages are shown or, with --all, until
the thread is exhausted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			sort, err := thread.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}
			if err := (thread.PageRequest{PageSize: size, Sort: sort}).Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			cur := cursor.New(a.client(), cursor.WithPageSize(size), cursor.WithLogger(a.logger))
			if err := cur.Mount(ctx, taskID, sort); err != nil {
				return err
			}
			for loaded := 1; cur.Snapshot().HasMore && (all || loaded < pages); loaded++ {
				if _, err := cur.ScrollThresholdReached(ctx); err != nil {
					return err
				}
			}

			snap := cur.Snapshot()
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), snap.Items)
			}
			renderThread(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortFlag, "sort", string(thread.SortNewest), "Root order: newest or oldest")
	cmd.Flags().IntVar(&size, "size", thread.DefaultPageSize, "Root comments per page")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "Load every page")
	return cmd
}

func newCommentsAddCmd(a *app) *cobra.Command {
	var replyTo int64

	cmd := &cobra.Command{
		Use:   "add <task-id> <content...>",
		Short: "Add a comment, or a reply with --reply-to",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			var parent *int64
			if replyTo > 0 {
				parent = &replyTo
			}

			c, err := a.client().CreateComment(cmd.Context(), taskID, strings.Join(args[1:], " "), parent)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s comment %d on task %d\n", green("Created"), c.ID, c.TaskID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&replyTo, "reply-to", 0, "Root comment to reply to")
	return cmd
}

func newCommentsEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <task-id> <comment-id> <content...>",
		Short: "Replace the content of a comment",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			commentID, err := parseID("comment", args[1])
			if err != nil {
				return err
			}

			c, err := a.client().UpdateComment(cmd.Context(), taskID, commentID, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s comment %d\n", green("Updated"), c.ID)
			return nil
		},
	}
}

func newCommentsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id> <comment-id>",
		Short: "Delete a comment and its replies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			commentID, err := parseID("comment", args[1])
			if err != nil {
				return err
			}

			removed, err := a.client().DeleteComment(cmd.Context(), taskID, commentID)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"deleted": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d comment(s)\n", green("Deleted"), removed)
			return nil
		},
	}
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}
