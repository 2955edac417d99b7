package orchestrator

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SourceReport is the outcome for one feed.
type SourceReport struct {
	Source             string `json:"source"`
	FeedURL            string `json:"feed_url"`
	Articles           int    `json:"articles"`
	ExtractionFailures int    `json:"extraction_failures"`
	Summarized         int    `json:"summarized"`
	File               string `json:"file,omitempty"`
	Error              string `json:"error,omitempty"`
}

type DeliveryFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// RunReport summarizes one digest run.
type RunReport struct {
	ID               string            `json:"id"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	Format           string            `json:"format"`
	Target           string            `json:"target,omitempty"`
	Sources          []SourceReport    `json:"sources"`
	Files            []string          `json:"files"`
	Delivered        int               `json:"delivered"`
	DeliveryFailures []DeliveryFailure `json:"delivery_failures,omitempty"`
}

func (r *RunReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalArticles sums the articles across all sources.
func (r *RunReport) TotalArticles() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Articles
	}
	return n
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)
)

// PrintReport writes a human-readable summary of r to w.
func PrintReport(w io.Writer, r *RunReport) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Digest Summary") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("run %s, %s", r.ID, r.Elapsed().Round(time.Millisecond))) + "\n\n")

	for _, s := range r.Sources {
		switch {
		case s.Error != "":
			b.WriteString(errStyle.Render("✗ "+s.Source) + "  " + s.Error + "\n")
		case s.Articles == 0:
			b.WriteString(dimStyle.Render("- "+s.Source) + "  no articles\n")
		default:
			line := fmt.Sprintf("%d articles", s.Articles)
			if s.ExtractionFailures > 0 {
				line += fmt.Sprintf(", %d extraction failures", s.ExtractionFailures)
			}
			if s.Summarized > 0 {
				line += fmt.Sprintf(", %d summarized", s.Summarized)
			}
			b.WriteString(okStyle.Render("✓ "+s.Source) + "  " + line + "  " + dimStyle.Render(filepath.Base(s.File)) + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\nTotal articles: %d\nFiles written:  %d\n", r.TotalArticles(), len(r.Files)))
	if r.Target != "" {
		b.WriteString(fmt.Sprintf("Delivered (%s): %d\n", r.Target, r.Delivered))
	}
	for _, f := range r.DeliveryFailures {
		b.WriteString(errStyle.Render("delivery failed: "+filepath.Base(f.File)) + "  " + f.Error + "\n")
	}

	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}
