package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newActivityCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity <task-id>",
		Short: "Show the newest activity of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			entries, err := a.client().ListActivity(cmd.Context(), taskID, limit)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No activity")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %s %s\n",
					faint(e.Timestamp.Local().Format("2006-01-02 15:04")),
					cyan(string(e.Type)),
					e.Description,
					faint(fmt.Sprintf("(user %d)", e.UserID)),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}
