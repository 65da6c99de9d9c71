package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"taskthread/internal/cursor"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderThread prints roots flush left with their replies indented below.
func renderThread(w io.Writer, snap cursor.Snapshot) {
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No comments yet")
		return
	}

	for _, c := range snap.Items {
		indent := ""
		marker := bold(fmt.Sprintf("#%d", c.ID))
		if !c.IsRoot() {
			indent = "    "
			marker = cyan(fmt.Sprintf("↳ #%d", c.ID))
		}
		edited := ""
		if c.UpdatedAt.After(c.CreatedAt) {
			edited = faint(" (edited)")
		}
		fmt.Fprintf(w, "%s%s %s%s\n", indent, marker,
			faint(fmt.Sprintf("user %d · %s", c.AuthorID, c.CreatedAt.Local().Format("2006-01-02 15:04"))),
			edited)
		for _, line := range strings.Split(c.Content, "\n") {
			fmt.Fprintf(w, "%s  %s\n", indent, line)
		}
	}

	status := "end of thread"
	if snap.HasMore {
		status = "more available"
	}
	fmt.Fprintf(w, "\n%s\n", faint(fmt.Sprintf("%d of %d comments, page %d of %d, %s",
		len(snap.Items), snap.TotalElements, snap.PageIndex+1, snap.TotalPages, status)))
}
