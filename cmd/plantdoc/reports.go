package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vbonduro/plantdoc/internal/domain"
)

var (
	reportsLimit int
	reportsShow  int64
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List archived diagnosis reports",
	Long: `List the diagnoses recorded in the archive (requires DB_PATH).

Use --show <id> to print one report in full.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if reportsShow > 0 {
			r, err := a.service.GetReport(cmd.Context(), reportsShow)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("report %d not found", reportsShow)
			}
			return printReport(out, r)
		}

		reports, err := a.service.ListReports(cmd.Context(), reportsLimit)
		if err != nil {
			return err
		}
		printReportList(out, reports)
		return nil
	},
}

func init() {
	reportsCmd.Flags().IntVar(&reportsLimit, "limit", 20, "maximum number of reports to list")
	reportsCmd.Flags().Int64Var(&reportsShow, "show", 0, "print the report with this id")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func printReportList(out io.Writer, reports []*domain.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports archived yet.")
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-6s %-20s %-24s %s", "ID", "COMPLETED", "PLANT", "SUMMARY")))
	for _, r := range reports {
		fmt.Fprintf(out, "%-6d %-20s %-24s %s\n",
			r.ID,
			r.CompletedAt.Local().Format("2006-01-02 15:04"),
			truncate(r.PlantName, 24),
			truncate(firstLine(r.Report), 60),
		)
	}
}

func printReport(out io.Writer, r *domain.Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.PlantName)
	fmt.Fprintf(&sb, "_Completed %s_\n\n", r.CompletedAt.Local().Format("2006-01-02 15:04"))
	if r.Findings != "" {
		fmt.Fprintf(&sb, "## Preliminary findings\n\n%s\n\n", r.Findings)
	}
	if len(r.Questions) > 0 {
		sb.WriteString("## Questions\n\n")
		for i, q := range r.Questions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
		fmt.Fprintf(&sb, "\n**Answers:** %s\n\n", r.Answers)
	}
	sb.WriteString(r.Report)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		_, err = io.WriteString(out, sb.String()+"\n")
		return err
	}
	rendered, err := renderer.Render(sb.String())
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "# \n")
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
