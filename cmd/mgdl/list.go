package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mgdl/pkg/app/styles"
	"github.com/kerbaras/mgdl/pkg/data"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all manga in your library",
	Long:  "Display all tracked manga in a formatted table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, false, "list", func(rt *runtime) error {
			works, err := rt.controller.Library(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(works) == 0 {
				fmt.Fprintln(out, "No manga in library. Use 'mgdl add <url>' to track one.")
				return nil
			}
			fmt.Fprintf(out, "\n%s\n\n", styles.TitleStyle.Render(fmt.Sprintf("Library (%d manga)", len(works))))
			fmt.Fprintln(out, libraryTable(works).View())
			fmt.Fprintf(out, "\n%s\n", statusCounts(works))
			return nil
		})
	},
}

func libraryTable(works []*data.Work) table.Model {
	columns := []table.Column{
		{Title: "Name", Width: 40},
		{Title: "Slug", Width: 30},
		{Title: "Creators", Width: 24},
		{Title: "Status", Width: 10},
	}

	rows := make([]table.Row, 0, len(works))
	for _, w := range works {
		rows = append(rows, table.Row{
			truncateString(w.Name, 38),
			truncateString(w.Slug, 28),
			truncateString(w.Creators, 22),
			string(w.Status),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		// height includes the header and its border
		table.WithHeight(len(rows)+2),
	)

	s := table.DefaultStyles()
	s.Header = styles.HeaderStyle
	s.Selected = s.Selected.
		Foreground(lipgloss.NoColor{}).
		Bold(false)
	t.SetStyles(s)
	return t
}

func statusCounts(works []*data.Work) string {
	counts := make(map[data.Status]int)
	for _, w := range works {
		counts[w.Status]++
	}
	var parts []string
	for _, st := range []data.Status{data.StatusOngoing, data.StatusComplete, data.StatusUnknown} {
		if counts[st] == 0 {
			continue
		}
		parts = append(parts, styles.WorkStatusStyle(string(st)).Render(fmt.Sprintf("%d %s", counts[st], strings.ToLower(string(st)))))
	}
	return strings.Join(parts, "  ")
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
