package diffreport

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors for rendered lines. An added finding is a regression.
var (
	colorAdded    = lipgloss.Color("#E74C3C")
	colorResolved = lipgloss.Color("#2CD7C7")
	colorModified = lipgloss.Color("#F4D03F")
	colorMuted    = lipgloss.Color("241")
)

type styles struct {
	title    lipgloss.Style
	added    lipgloss.Style
	resolved lipgloss.Style
	modified lipgloss.Style
	muted    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true),
		added:    r.NewStyle().Foreground(colorAdded),
		resolved: r.NewStyle().Foreground(colorResolved),
		modified: r.NewStyle().Foreground(colorModified),
		muted:    r.NewStyle().Foreground(colorMuted),
	}
}

// Render writes a text rendering of r to w. Colors are emitted only when w
// is a terminal that supports them.
func Render(w io.Writer, r *Enhanced) error {
	st := newStyles(lipgloss.NewRenderer(w))
	var b strings.Builder

	s := r.Summary
	b.WriteString(st.title.Render(fmt.Sprintf("Diff %s", r.ID)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d change(s): %d critical, %d improvement(s), %d degradation(s)\n",
		s.TotalChanges, s.CriticalChanges, s.Improvements, s.Degradations))

	if v := r.VisualDiff; v != nil && len(v.Lines()) > 0 {
		b.WriteString("\n")
		for _, line := range v.Added {
			b.WriteString(st.added.Render(line))
			b.WriteString("\n")
		}
		for _, line := range v.Removed {
			b.WriteString(st.resolved.Render(line))
			b.WriteString("\n")
		}
		for _, line := range v.Modified {
			b.WriteString(st.modified.Render(line))
			b.WriteString("\n")
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n")
		b.WriteString(st.title.Render("Recommendations"))
		b.WriteString("\n")
		for _, rec := range r.Recommendations {
			b.WriteString("  - ")
			b.WriteString(rec)
			b.WriteString("\n")
		}
	}

	if m := r.Metrics; m != nil {
		b.WriteString("\n")
		b.WriteString(st.muted.Render(fmt.Sprintf("improvement %d%%  regression %d%%  stability %d",
			m.ImprovementScore, m.RegressionScore, m.StabilityIndex)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
